package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracesanford134/aksol-dapp/service/metrics"
)

// Client is the HTTP client for the transaction-construction backend. It owns
// no state beyond the request/response round-trip and never mutates shared
// state, logs activity, or caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new backend client.
// If httpClient is nil a 30s-timeout default is used. If metrics is nil, no
// metrics are recorded.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// prepareRequest is the wire format for both prepare routes.
// ToPubkey is omitted on the swap route.
type prepareRequest struct {
	FromPubkey string  `json:"fromPubkey"`
	ToPubkey   string  `json:"toPubkey,omitempty"`
	AmountUI   float64 `json:"amountUi"`
	Cluster    string  `json:"cluster"`
}

// prepareResponse is the wire format of the backend's reply. Which optional
// field is present decides the Prepared kind; both or neither is a contract
// violation.
type prepareResponse struct {
	OK          bool   `json:"ok"`
	Signature   string `json:"signature,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PrepareTransfer asks the backend to construct a peer-to-peer transfer.
func (c *Client) PrepareTransfer(ctx context.Context, params TransferParams) (*Prepared, error) {
	return c.prepare(ctx, "/api/v1/transfer", prepareRequest{
		FromPubkey: params.FromPubkey,
		ToPubkey:   params.ToPubkey,
		AmountUI:   params.AmountUI,
		Cluster:    params.Cluster,
	})
}

// PrepareSwap asks the backend to construct a fee-free purchase transaction.
func (c *Client) PrepareSwap(ctx context.Context, params SwapParams) (*Prepared, error) {
	return c.prepare(ctx, "/api/v1/swap", prepareRequest{
		FromPubkey: params.FromPubkey,
		AmountUI:   params.AmountUI,
		Cluster:    params.Cluster,
	})
}

// prepare performs the POST round-trip and reduces the reply to a Prepared.
func (c *Client) prepare(ctx context.Context, route string, reqBody prepareRequest) (*Prepared, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordBackendRequest(route, "unreachable", duration)
		}
		c.logger.DebugContext(ctx, "backend request failed", "route", route, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordBackendRequest(route, fmt.Sprintf("%d", resp.StatusCode), duration)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseRejection(resp)
	}

	var wire prepareResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: undecodable body: %v", ErrContractViolation, err)
	}

	if !wire.OK {
		return nil, &RejectedError{StatusCode: resp.StatusCode, Reason: wire.Error}
	}

	// Decide the variant once, here. Exactly one payload field must be set.
	switch {
	case wire.Signature != "" && wire.Transaction != "":
		return nil, fmt.Errorf("%w: response carries both signature and transaction", ErrContractViolation)
	case wire.Signature != "":
		c.logger.DebugContext(ctx, "backend broadcast transaction", "route", route, "signature", wire.Signature)
		return &Prepared{Kind: KindBroadcasted, Signature: wire.Signature}, nil
	case wire.Transaction != "":
		c.logger.DebugContext(ctx, "backend returned unsigned envelope", "route", route)
		return &Prepared{Kind: KindUnsigned, Envelope: wire.Transaction}, nil
	default:
		return nil, fmt.Errorf("%w: success response with neither signature nor transaction", ErrContractViolation)
	}
}

// parseRejection extracts a reason from a non-2xx response body when one is
// present; a missing or unstructured body still yields a RejectedError.
func (c *Client) parseRejection(resp *http.Response) error {
	var wire prepareResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return &RejectedError{StatusCode: resp.StatusCode, Reason: wire.Error}
	}
	return &RejectedError{StatusCode: resp.StatusCode}
}
