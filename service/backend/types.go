package backend

import (
	"errors"
	"fmt"
)

// PreparedKind discriminates the two backend reply shapes. The kind is
// decided exactly once, when the response is decoded; nothing downstream
// re-inspects the wire fields.
type PreparedKind int

const (
	// KindBroadcasted means the backend already submitted the transaction;
	// the reply carries the network signature.
	KindBroadcasted PreparedKind = iota + 1

	// KindUnsigned means the backend built but did not submit; the reply
	// carries a base64 envelope the caller must sign and broadcast.
	KindUnsigned
)

// Prepared is the backend's reply to a prepare call, reduced to a tagged
// variant. Exactly one of Signature/Envelope is populated, per Kind.
type Prepared struct {
	Kind      PreparedKind
	Signature string
	Envelope  string
}

// ErrUnreachable indicates a transport-level failure: no HTTP response at all.
var ErrUnreachable = errors.New("backend unreachable")

// ErrContractViolation indicates the backend answered with a well-formed HTTP
// response whose body fits neither reply shape, or declared success without
// a payload.
var ErrContractViolation = errors.New("backend contract violation")

// RejectedError indicates the backend refused the request, either with a
// non-2xx status or an explicit ok:false body.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("backend rejected request (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("backend rejected request (status %d)", e.StatusCode)
}

// TransferParams describes a peer-to-peer transfer prepare request.
type TransferParams struct {
	FromPubkey string
	ToPubkey   string
	AmountUI   float64
	Cluster    string
}

// SwapParams describes a fee-free purchase-route prepare request. The
// destination is fixed by the route, so only the buyer and amount travel.
type SwapParams struct {
	FromPubkey string
	AmountUI   float64
	Cluster    string
}
