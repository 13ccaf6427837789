package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// realRPCClient adapts the actual solana-go RPC and websocket clients to our
// RPCClient interface. This adapter allows us to control the interface and
// makes testing easier.
type realRPCClient struct {
	client *rpc.Client
	ws     *ws.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// The websocket client is used only for the confirmation wait; callers own
// both connections' lifecycles.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string, wsClient *ws.Client) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
		ws:     wsClient,
	}
}

func (r *realRPCClient) SendTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	return r.client.SendTransactionWithOpts(ctx, tx, opts)
}

// AwaitSignatureConfirmation subscribes to signature notifications and blocks
// until the node reports the requested commitment, the transaction errors, or
// ctx is done. One subscription, one receive; no polling here.
func (r *realRPCClient) AwaitSignatureConfirmation(
	ctx context.Context,
	sig solana.Signature,
	commitment rpc.CommitmentType,
) error {
	if r.ws == nil {
		return fmt.Errorf("websocket client not configured")
	}

	sub, err := r.ws.SignatureSubscribe(sig, commitment)
	if err != nil {
		return fmt.Errorf("signature subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	result, err := sub.Recv(ctx)
	if err != nil {
		return err
	}
	if result != nil && result.Value.Err != nil {
		return fmt.Errorf("transaction failed on-chain: %v", result.Value.Err)
	}
	return nil
}

func (r *realRPCClient) GetSignatureStatuses(
	ctx context.Context,
	searchTransactionHistory bool,
	sigs ...solana.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	return r.client.GetSignatureStatuses(ctx, searchTransactionHistory, sigs...)
}

func (r *realRPCClient) GetBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	return r.client.GetBalance(ctx, account, commitment)
}
