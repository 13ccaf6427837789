package pipeline

import "fmt"

// ErrorKind classifies every way an execution can fail. Each failure is
// mapped to exactly one kind at the pipeline boundary; nothing leaves
// Execute unclassified.
type ErrorKind string

const (
	// ErrorKindInvalidInput: local validation failed before any network call.
	// The user must correct the input and resubmit.
	ErrorKindInvalidInput ErrorKind = "invalid_input"

	// ErrorKindBackendUnreachable: the prepare call got no response at all.
	ErrorKindBackendUnreachable ErrorKind = "backend_unreachable"

	// ErrorKindBackendRejected: the backend answered with a failure status.
	ErrorKindBackendRejected ErrorKind = "backend_rejected"

	// ErrorKindContractViolation: the backend's reply fits neither recognized
	// shape, or declared success without a payload.
	ErrorKindContractViolation ErrorKind = "contract_violation"

	// ErrorKindMalformedEnvelope: the backend's envelope was not valid base64
	// or satisfied neither transaction format.
	ErrorKindMalformedEnvelope ErrorKind = "malformed_envelope"

	// ErrorKindSigningFailed: the wallet declined to sign or failed to submit.
	// Usually deliberate user rejection, so never retried automatically.
	ErrorKindSigningFailed ErrorKind = "signing_failed"

	// ErrorKindConfirmationTimeout: a signature exists but finality was not
	// established within the bound. The transaction may still land; re-query
	// by signature instead of resubmitting.
	ErrorKindConfirmationTimeout ErrorKind = "confirmation_timeout"
)

// userMessage returns the human-readable description for each failure kind.
func (k ErrorKind) userMessage() string {
	switch k {
	case ErrorKindInvalidInput:
		return "the request is invalid; correct it and resubmit"
	case ErrorKindBackendUnreachable:
		return "the backend could not be reached"
	case ErrorKindBackendRejected:
		return "the backend rejected the request"
	case ErrorKindContractViolation:
		return "the backend returned an unrecognizable response"
	case ErrorKindMalformedEnvelope:
		return "the backend returned a malformed transaction envelope"
	case ErrorKindSigningFailed:
		return "the wallet declined or failed to sign and submit"
	case ErrorKindConfirmationTimeout:
		return "the transaction was submitted but confirmation timed out; look it up by signature before retrying"
	default:
		return "the request failed"
	}
}

// Result is the single terminal outcome of an Execute call.
//
// On success OK is true and Signature is the confirmed network signature.
// On failure ErrorKind and Message are set; Signature is additionally set for
// confirmation timeouts, where the transaction may still land.
type Result struct {
	OK        bool      `json:"ok"`
	Signature string    `json:"signature,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func success(signature string) Result {
	return Result{OK: true, Signature: signature}
}

func failure(kind ErrorKind, detail string) Result {
	msg := kind.userMessage()
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return Result{OK: false, ErrorKind: kind, Message: msg}
}

func failureWithSignature(kind ErrorKind, detail, signature string) Result {
	r := failure(kind, detail)
	r.Signature = signature
	return r
}
