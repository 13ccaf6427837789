package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// ErrNotConnected is returned when a signing operation is attempted against
// a signer with no wallet attached.
var ErrNotConnected = errors.New("wallet not connected")

// ErrSigningDeclined is returned when the wallet refuses to sign. For an
// interactive wallet this usually reflects deliberate user rejection, so
// callers must not retry automatically.
var ErrSigningDeclined = errors.New("wallet declined to sign")

// Signer is the capability the pipeline depends on for signing. It is owned
// by the host environment and injected; the pipeline never constructs one.
type Signer interface {
	// Connected reports whether a wallet is attached.
	Connected() bool

	// CanSign reports whether the attached wallet can produce signatures.
	CanSign() bool

	// PublicKey returns the connected wallet's address.
	PublicKey() solana.PublicKey

	// SignTransaction signs tx in place with the wallet's key.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error

	// SendTransaction submits a signed transaction through the wallet's own
	// network connection and returns the network-assigned signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// TransactionSender is the network connection a KeypairSigner submits
// through. A browser wallet owns its own connection; the demo signer
// borrows the panel's.
type TransactionSender interface {
	Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// KeypairSigner signs with a local keypair loaded from disk. It stands in for
// a browser wallet extension in the demo panel.
type KeypairSigner struct {
	key    solana.PrivateKey
	sender TransactionSender
	logger *slog.Logger
}

// NewKeypairSigner creates a signer around an in-memory private key.
// The sender may be nil for sign-only use.
func NewKeypairSigner(key solana.PrivateKey, sender TransactionSender, logger *slog.Logger) *KeypairSigner {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeypairSigner{key: key, sender: sender, logger: logger}
}

// LoadKeypairSigner loads a signer from a solana-keygen JSON keypair file.
func LoadKeypairSigner(path string, sender TransactionSender, logger *slog.Logger) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair from %s: %w", path, err)
	}
	return NewKeypairSigner(key, sender, logger), nil
}

// Connected reports whether a key is loaded.
func (s *KeypairSigner) Connected() bool {
	return len(s.key) > 0
}

// CanSign reports whether the loaded key can sign. For a keypair signer this
// is the same as being connected; hardware wallets can differ.
func (s *KeypairSigner) CanSign() bool {
	return s.Connected()
}

// PublicKey returns the wallet's address.
func (s *KeypairSigner) PublicKey() solana.PublicKey {
	if !s.Connected() {
		return solana.PublicKey{}
	}
	return s.key.PublicKey()
}

// SignTransaction signs tx in place. It fails if the transaction requires a
// signer other than the wallet's own key.
func (s *KeypairSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		s.logger.DebugContext(ctx, "signing failed", "error", err)
		return fmt.Errorf("%w: %v", ErrSigningDeclined, err)
	}

	s.logger.DebugContext(ctx, "transaction signed", "signer", s.key.PublicKey().String())
	return nil
}

// SendTransaction submits a signed transaction through the configured sender.
func (s *KeypairSigner) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if !s.Connected() {
		return solana.Signature{}, ErrNotConnected
	}
	if s.sender == nil {
		return solana.Signature{}, fmt.Errorf("no transaction sender configured")
	}
	return s.sender.Broadcast(ctx, tx)
}

// DisconnectedSigner is the no-wallet state. Every capability check reports
// false and every operation fails with ErrNotConnected, so a panel running
// without a keypair rejects submissions during validation instead of
// panicking mid-pipeline.
type DisconnectedSigner struct{}

// NewDisconnectedSigner returns the signer used when no wallet is configured.
func NewDisconnectedSigner() *DisconnectedSigner {
	return &DisconnectedSigner{}
}

func (s *DisconnectedSigner) Connected() bool { return false }

func (s *DisconnectedSigner) CanSign() bool { return false }

func (s *DisconnectedSigner) PublicKey() solana.PublicKey { return solana.PublicKey{} }

func (s *DisconnectedSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return ErrNotConnected
}

func (s *DisconnectedSigner) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, ErrNotConnected
}
