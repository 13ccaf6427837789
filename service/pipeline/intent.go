package pipeline

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

// IntentKind distinguishes the two user actions the panel supports.
type IntentKind string

const (
	// IntentTransfer is a peer-to-peer transfer to a user-supplied destination.
	IntentTransfer IntentKind = "transfer"

	// IntentSwap is a purchase via the backend's fee-free route; the
	// destination is fixed by the route.
	IntentSwap IntentKind = "swap"
)

// minDestinationLength is the shortest plausible base58 address. Real Solana
// addresses are 32-44 characters; anything shorter is rejected before any
// network call.
const minDestinationLength = 32

// Intent is an immutable description of a requested action. Source is always
// the connected wallet's address, never backend-supplied.
type Intent struct {
	Kind        IntentKind
	Source      string
	Destination string // transfers only
	AmountUI    float64 // user-facing units
	Cluster     string
}

// validate checks an intent against the connected wallet without touching the
// network. It returns the failure kind and a detail string, or ("", "") when
// the intent is acceptable.
func (p *Pipeline) validate(intent Intent) (ErrorKind, string) {
	if !p.signer.Connected() {
		return ErrorKindInvalidInput, "no wallet connected"
	}
	if !p.signer.CanSign() {
		return ErrorKindInvalidInput, "connected wallet cannot sign"
	}

	if intent.Kind != IntentTransfer && intent.Kind != IntentSwap {
		return ErrorKindInvalidInput, fmt.Sprintf("unknown intent kind %q", intent.Kind)
	}

	if math.IsNaN(intent.AmountUI) || math.IsInf(intent.AmountUI, 0) {
		return ErrorKindInvalidInput, "amount must be a finite number"
	}
	if intent.AmountUI <= 0 {
		return ErrorKindInvalidInput, "amount must be positive"
	}

	if intent.Source != p.signer.PublicKey().String() {
		return ErrorKindInvalidInput, "source address does not match the connected wallet"
	}

	if intent.Kind == IntentTransfer {
		if len(intent.Destination) < minDestinationLength {
			return ErrorKindInvalidInput, "destination address is missing or too short"
		}
		if _, err := solana.PublicKeyFromBase58(intent.Destination); err != nil {
			return ErrorKindInvalidInput, "destination address is not a valid base58 public key"
		}
	}

	return "", ""
}
