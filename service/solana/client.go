package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tracesanford134/aksol-dapp/service/metrics"
)

// RPCClient is an interface for the Solana network operations we need.
// This allows us to mock the network layer in tests without hitting real
// Solana nodes.
type RPCClient interface {
	SendTransaction(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	// AwaitSignatureConfirmation blocks until the signature reaches the given
	// commitment or ctx is done. The bound on the wait is the caller's ctx;
	// implementations own the wait semantics, not the caller.
	AwaitSignatureConfirmation(
		ctx context.Context,
		sig solana.Signature,
		commitment rpc.CommitmentType,
	) error

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		sigs ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)
}

// Client provides domain-level network operations for the panel: broadcast,
// confirmation wait, signature lookup, and balance reads. It wraps the RPC
// client with logging and metrics.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet")
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil,
// no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// Broadcast serializes and submits a signed transaction to the network and
// returns the network-assigned signature.
func (c *Client) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	}

	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("SendTransaction", status, c.endpoint, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to send transaction", "error", err)
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction broadcast", "signature", sig.String())
	return sig, nil
}

// AwaitConfirmation waits until the signature reaches the given commitment.
// This is a single bounded wait on one network primitive; the caller imposes
// the bound through ctx. A ctx deadline surfaces as ctx.Err().
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error {
	c.logger.DebugContext(ctx, "awaiting confirmation",
		"signature", sig.String(),
		"commitment", string(commitment),
	)

	start := time.Now()
	err := c.rpc.AwaitSignatureConfirmation(ctx, sig, commitment)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("SignatureSubscribe", status, c.endpoint, duration)
	}

	if err != nil {
		c.logger.WarnContext(ctx, "confirmation wait ended without confirmation",
			"signature", sig.String(),
			"error", err,
		)
		return err
	}

	c.logger.InfoContext(ctx, "transaction confirmed",
		"signature", sig.String(),
		"commitment", string(commitment),
	)
	return nil
}

// LookupSignature fetches the current status of a signature. This is the
// re-query path for ambiguous outcomes: after a confirmation timeout the
// caller re-checks here instead of resubmitting and risking a double spend.
func (c *Client) LookupSignature(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	start := time.Now()
	result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSignatureStatuses", status, c.endpoint, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to look up signature",
			"signature", sig.String(),
			"error", err,
		)
		return nil, fmt.Errorf("get signature statuses: %w", err)
	}

	out := &SignatureStatus{Signature: sig.String()}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return out, nil
	}

	st := result.Value[0]
	out.Found = true
	out.Slot = st.Slot
	out.Confirmations = st.Confirmations
	out.ConfirmationStatus = string(st.ConfirmationStatus)
	if st.Err != nil {
		errStr := fmt.Sprintf("%v", st.Err)
		out.Err = &errStr
	}
	return out, nil
}

// Balance returns the lamport balance of an account at the given commitment.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	start := time.Now()
	result, err := c.rpc.GetBalance(ctx, account, commitment)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetBalance", status, c.endpoint, duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"account", account.String(),
			"error", err,
		)
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if result == nil {
		return 0, fmt.Errorf("get balance: empty result")
	}
	return result.Value, nil
}
