package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitTransfer_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/transfers", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DestPubkey11111111111111111111111111111111", req["to_pubkey"])
		assert.Equal(t, 1.5, req["amount_ui"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"signature":"5KtP9rq"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	outcome, err := c.SubmitTransfer(context.Background(), "DestPubkey11111111111111111111111111111111", 1.5)
	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Equal(t, "5KtP9rq", outcome.Signature)
}

func TestSubmitTransfer_PipelineFailureIsOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(`{"ok":false,"errorKind":"confirmation_timeout","signature":"abc123","message":"confirmation timed out"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	outcome, err := c.SubmitTransfer(context.Background(), "dest", 1)
	require.NoError(t, err, "a terminal pipeline failure is a result, not a client error")
	assert.False(t, outcome.OK)
	assert.Equal(t, "confirmation_timeout", outcome.ErrorKind)
	assert.Equal(t, "abc123", outcome.Signature)
}

func TestSubmitTransfer_RequestRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request body"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.SubmitTransfer(context.Background(), "dest", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request body")
}

func TestSubmitSwap_CarriesEstimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/swaps", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"signature":"sig","estimated_tokens_ui":3000}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	outcome, err := c.SubmitSwap(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Equal(t, 3000.0, outcome.EstimatedTokensUI)
}

func TestActivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/activity", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[{"id":"b","label":"bought AKSOL","timestamp":"2026-08-25T12:00:00Z","signature":"sig2"},{"id":"a","label":"sent 1 SOL","timestamp":"2026-08-25T11:00:00Z"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	records, err := c.Activity(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bought AKSOL", records[0].Label)
	require.NotNil(t, records[0].Signature)
	assert.Equal(t, "sig2", *records[0].Signature)
	assert.Nil(t, records[1].Signature)
}

func TestLookup_NotFoundIsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"signature":"abc","found":false}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	status, err := c.Lookup(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, status.Found)
	assert.Equal(t, "abc", status.Signature)
}

func TestLookup_InvalidSignatureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid transaction signature"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.Lookup(context.Background(), "not-base58")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction signature")
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":"addr","lamports":2500000000,"sol":2.5}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	balance, err := c.Balance(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, uint64(2500000000), balance.Lamports)
	assert.Equal(t, 2.5, balance.SOL)
}

func TestPrice_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"price not yet available"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.Price(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price not yet available")
}

func TestHistory_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wallet123", r.URL.Query().Get("wallet"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transfers":[{"id":1,"wallet":"wallet123","kind":"transfer","amount_ui":1,"cluster":"devnet","outcome":"success","signature":"sig","created_at":"2026-08-25T12:00:00Z"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	records, err := c.History(context.Background(), "wallet123", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "transfer", records[0].Kind)
	assert.Equal(t, "success", records[0].Outcome)
}

func TestSubmitTransfer_ServerUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil, nil)
	_, err := c.SubmitTransfer(context.Background(), "dest", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
