package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Outcome is the terminal result of a pipeline execution as reported by the
// panel server. On failure ErrorKind and Message are set; Signature is also
// set for confirmation timeouts, where the transaction may still land.
type Outcome struct {
	OK        bool   `json:"ok"`
	Signature string `json:"signature,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SwapOutcome is an Outcome plus the panel's display-only token estimate.
type SwapOutcome struct {
	Outcome
	EstimatedTokensUI float64 `json:"estimated_tokens_ui,omitempty"`
}

// ActivityRecord is one entry in the panel's recent-outcomes feed.
type ActivityRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Signature *string   `json:"signature,omitempty"`
}

// SignatureStatus is the on-chain status of a transaction signature.
type SignatureStatus struct {
	Signature          string  `json:"signature"`
	Found              bool    `json:"found"`
	Slot               uint64  `json:"slot,omitempty"`
	Confirmations      *uint64 `json:"confirmations,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status,omitempty"`
	Err                *string `json:"err,omitempty"`
}

// Balance is an account's balance in lamports and SOL.
type Balance struct {
	Address  string  `json:"address"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

// Quote is the panel's latest SOL/USD price.
type Quote struct {
	PriceUSD  float64   `json:"price_usd"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// HistoryRecord is one persisted pipeline outcome.
type HistoryRecord struct {
	ID          int64     `json:"id"`
	Wallet      string    `json:"wallet"`
	Destination *string   `json:"destination,omitempty"`
	Kind        string    `json:"kind"`
	AmountUI    float64   `json:"amount_ui"`
	Cluster     string    `json:"cluster"`
	Outcome     string    `json:"outcome"`
	ErrorKind   *string   `json:"error_kind,omitempty"`
	Signature   *string   `json:"signature,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Client is the HTTP client for the transfer panel service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new panel client. The default HTTP timeout is generous
// because transfer submissions hold the request open through the server's
// confirmation wait.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SubmitTransfer runs a transfer through the server's pipeline and returns the
// terminal outcome. A failed pipeline execution is returned as an Outcome with
// OK=false, not as an error; errors are reserved for transport problems and
// unrecognizable responses.
func (c *Client) SubmitTransfer(ctx context.Context, toPubkey string, amountUI float64) (*Outcome, error) {
	reqBody := map[string]interface{}{
		"to_pubkey": toPubkey,
		"amount_ui": amountUI,
	}

	var outcome Outcome
	if err := c.postJSON(ctx, "/api/v1/transfers", reqBody, &outcome); err != nil {
		return nil, err
	}

	c.logger.Debug("transfer submitted",
		"to", toPubkey,
		"amount_ui", amountUI,
		"ok", outcome.OK,
		"signature", outcome.Signature,
	)
	return &outcome, nil
}

// SubmitSwap runs a swap through the server's pipeline.
func (c *Client) SubmitSwap(ctx context.Context, amountUI float64) (*SwapOutcome, error) {
	reqBody := map[string]interface{}{
		"amount_ui": amountUI,
	}

	var outcome SwapOutcome
	if err := c.postJSON(ctx, "/api/v1/swaps", reqBody, &outcome); err != nil {
		return nil, err
	}

	c.logger.Debug("swap submitted",
		"amount_ui", amountUI,
		"ok", outcome.OK,
		"signature", outcome.Signature,
	)
	return &outcome, nil
}

// Activity retrieves the panel's recent-outcomes feed, newest first.
func (c *Client) Activity(ctx context.Context) ([]ActivityRecord, error) {
	var response struct {
		Records []ActivityRecord `json:"records"`
	}
	if err := c.getJSON(ctx, "/api/v1/activity", &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// Lookup retrieves the on-chain status of a signature. A signature the
// network has no record of is returned with Found=false, not as an error.
func (c *Client) Lookup(ctx context.Context, signature string) (*SignatureStatus, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 404 still carries a status body with Found=false.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return nil, c.parseErrorResponse(resp)
	}

	var status SignatureStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// Balance retrieves an account's balance.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	var balance Balance
	path := fmt.Sprintf("/api/v1/balance/%s", url.PathEscape(address))
	if err := c.getJSON(ctx, path, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// Price retrieves the latest SOL/USD quote.
func (c *Client) Price(ctx context.Context) (*Quote, error) {
	var quote Quote
	if err := c.getJSON(ctx, "/api/v1/price", &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// History retrieves persisted outcomes, newest first. An empty wallet returns
// outcomes for all wallets; a limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, wallet string, limit int) ([]HistoryRecord, error) {
	q := url.Values{}
	if wallet != "" {
		q.Set("wallet", wallet)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var response struct {
		Transfers []HistoryRecord `json:"transfers"`
	}
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.Transfers, nil
}

// postJSON posts a JSON body and decodes the JSON response into out. Pipeline
// endpoints report failures in the body alongside a non-2xx status, so any
// decodable body is returned to the caller; only an unrecognizable response
// becomes an error.
func (c *Client) postJSON(ctx context.Context, path string, reqBody interface{}, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Request-level rejections (bad JSON, oversized body) come back as an
	// error envelope rather than a pipeline outcome.
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("request failed: %s", errResp.Error)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// getJSON fetches a JSON response into out, treating any non-200 as an error.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
