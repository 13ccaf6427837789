package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TransactionFormat identifies which wire format an envelope decoded as.
type TransactionFormat string

const (
	// FormatLegacy is the original transaction wire format.
	FormatLegacy TransactionFormat = "legacy"

	// FormatVersioned is the versioned (v0) wire format with a version prefix.
	FormatVersioned TransactionFormat = "versioned"
)

// DecodedTransaction is a transaction reconstructed from a backend envelope.
// It is built fresh per request and discarded once signing/broadcast completes.
type DecodedTransaction struct {
	Tx     *solana.Transaction
	Format TransactionFormat
}

// SetFeePayer points the transaction's fee-payer slot at the given account.
// The fee payer is always the first account key and the first required signer.
func (d *DecodedTransaction) SetFeePayer(payer solana.PublicKey) error {
	if d.Tx == nil || len(d.Tx.Message.AccountKeys) == 0 {
		return fmt.Errorf("transaction has no account keys")
	}
	d.Tx.Message.AccountKeys[0] = payer
	if d.Tx.Message.Header.NumRequiredSignatures == 0 {
		d.Tx.Message.Header.NumRequiredSignatures = 1
	}
	return nil
}

// SignatureStatus is our domain view of a signature lookup, independent of
// the RPC response format.
type SignatureStatus struct {
	Signature          string
	Found              bool
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string
	Err                *string
}
