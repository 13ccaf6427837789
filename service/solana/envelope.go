package solana

import (
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrMalformedEnvelope indicates the backend's envelope was not valid base64
// or decoded to bytes that satisfy neither transaction wire format.
var ErrMalformedEnvelope = errors.New("malformed transaction envelope")

// DecodeEnvelope decodes a base64-encoded serialized transaction into a
// DecodedTransaction.
//
// The versioned format is attempted first and is authoritative on success:
// versioned bytes can mis-parse as a structurally plausible legacy message
// without erroring, so the order of attempts is load-bearing.
func DecodeEnvelope(envelopeBase64 string) (*DecodedTransaction, error) {
	raw, err := base64.StdEncoding.DecodeString(envelopeBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedEnvelope, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}

	if tx, err := parseVersioned(raw); err == nil {
		return &DecodedTransaction{Tx: tx, Format: FormatVersioned}, nil
	}

	tx, err := parseLegacy(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bytes satisfy neither versioned nor legacy format", ErrMalformedEnvelope)
	}
	return &DecodedTransaction{Tx: tx, Format: FormatLegacy}, nil
}

// parseVersioned parses raw bytes as a versioned (v0) transaction.
// A successful binary parse of a legacy-version message is rejected here so
// the legacy attempt below stays the only producer of FormatLegacy results.
func parseVersioned(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, err
	}
	if tx.Message.GetVersion() == solana.MessageVersionLegacy {
		return nil, fmt.Errorf("message is legacy, not versioned")
	}
	return tx, nil
}

// parseLegacy parses raw bytes as a legacy transaction.
func parseLegacy(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, err
	}
	if tx.Message.GetVersion() != solana.MessageVersionLegacy {
		return nil, fmt.Errorf("message is versioned, not legacy")
	}
	return tx, nil
}
