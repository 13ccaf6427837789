package wallet

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sig   solana.Signature
	err   error
	calls int
}

func (f *fakeSender) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.calls++
	return f.sig, f.err
}

func unsignedTransfer(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1_000_000, payer, to).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestKeypairSigner_SignTransaction(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := NewKeypairSigner(key, nil, nil)

	require.True(t, signer.Connected())
	require.True(t, signer.CanSign())
	assert.Equal(t, key.PublicKey(), signer.PublicKey())

	tx := unsignedTransfer(t, key.PublicKey())
	require.NoError(t, signer.SignTransaction(context.Background(), tx))
	require.Len(t, tx.Signatures, 1)

	// The produced signature must verify against the serialized message.
	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[0].Verify(key.PublicKey(), msg))
}

func TestKeypairSigner_SignTransaction_MissingSigner(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := NewKeypairSigner(key, nil, nil)

	// Fee payer is some other wallet, so our key cannot satisfy the message.
	tx := unsignedTransfer(t, solana.NewWallet().PublicKey())
	err = signer.SignTransaction(context.Background(), tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSigningDeclined)
}

func TestKeypairSigner_NotConnected(t *testing.T) {
	signer := NewKeypairSigner(nil, nil, nil)

	assert.False(t, signer.Connected())
	assert.False(t, signer.CanSign())

	err := signer.SignTransaction(context.Background(), &solana.Transaction{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = signer.SendTransaction(context.Background(), &solana.Transaction{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestKeypairSigner_SendTransaction(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	sender := &fakeSender{sig: solana.Signature{5, 5, 5}}
	signer := NewKeypairSigner(key, sender, nil)

	sig, err := signer.SendTransaction(context.Background(), &solana.Transaction{})
	require.NoError(t, err)
	assert.Equal(t, sender.sig, sig)
	assert.Equal(t, 1, sender.calls)
}

func TestKeypairSigner_SendTransaction_NoSender(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := NewKeypairSigner(key, nil, nil)

	_, err = signer.SendTransaction(context.Background(), &solana.Transaction{})
	require.Error(t, err)
}

func TestDisconnectedSigner(t *testing.T) {
	var signer Signer = NewDisconnectedSigner()

	assert.False(t, signer.Connected())
	assert.False(t, signer.CanSign())
	assert.Equal(t, solana.PublicKey{}, signer.PublicKey())

	err := signer.SignTransaction(context.Background(), &solana.Transaction{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = signer.SendTransaction(context.Background(), &solana.Transaction{})
	assert.ErrorIs(t, err, ErrNotConnected)
}
