package nats

import (
	"time"

	"github.com/tracesanford134/aksol-dapp/service/pipeline"
)

// OutcomeEvent represents a terminal pipeline outcome published to NATS.
// This is published to the subject "transfers.{wallet_address}" in JetStream
// and feeds the panel's live activity stream.
type OutcomeEvent struct {
	// Wallet information
	WalletAddress string `json:"wallet_address"`

	// Intent details
	Kind     string  `json:"kind"` // "transfer" or "swap"
	AmountUI float64 `json:"amount_ui"`
	Cluster  string  `json:"cluster"`

	// Outcome details
	Outcome   string `json:"outcome"` // "success" or "failure"
	ErrorKind string `json:"error_kind,omitempty"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromResult converts a pipeline result to an OutcomeEvent for publishing.
func FromResult(intent pipeline.Intent, result pipeline.Result) *OutcomeEvent {
	outcome := "success"
	if !result.OK {
		outcome = "failure"
	}
	return &OutcomeEvent{
		WalletAddress: intent.Source,
		Kind:          string(intent.Kind),
		AmountUI:      intent.AmountUI,
		Cluster:       intent.Cluster,
		Outcome:       outcome,
		ErrorKind:     string(result.ErrorKind),
		Signature:     result.Signature,
		Message:       result.Message,
		PublishedAt:   time.Now().UTC(),
	}
}
