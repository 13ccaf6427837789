package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracesanford134/aksol-dapp/service/activity"
	"github.com/tracesanford134/aksol-dapp/service/config"
	natspkg "github.com/tracesanford134/aksol-dapp/service/nats"
	"github.com/tracesanford134/aksol-dapp/service/pipeline"
	solanasvc "github.com/tracesanford134/aksol-dapp/service/solana"
	"github.com/tracesanford134/aksol-dapp/service/wallet"
)

type fakeExecutor struct {
	result     pipeline.Result
	calls      int
	lastIntent pipeline.Intent
}

func (f *fakeExecutor) Execute(ctx context.Context, intent pipeline.Intent) pipeline.Result {
	f.calls++
	f.lastIntent = intent
	return f.result
}

type fakeChain struct {
	status         *solanasvc.SignatureStatus
	statusErr      error
	lamports       uint64
	balanceErr     error
	lastCommitment rpc.CommitmentType
}

func (f *fakeChain) LookupSignature(ctx context.Context, sig solanago.Signature) (*solanasvc.SignatureStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeChain) Balance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	f.lastCommitment = commitment
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.lamports, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Cluster:    config.ClusterDevnet,
		Commitment: "confirmed",
	}
}

func testSigner(t *testing.T) wallet.Signer {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.NewKeypairSigner(key, nil, nil)
}

func TestHandleSubmitTransfer_Success(t *testing.T) {
	sig := solanago.Signature{1, 2, 3}.String()
	exec := &fakeExecutor{result: pipeline.Result{OK: true, Signature: sig}}
	signer := testSigner(t)
	publisher := natspkg.NewMockPublisher()
	handler := handleSubmitTransfer(exec, signer, nil, publisher, testConfig(), testLogger())

	dest := solanago.NewWallet().PublicKey().String()
	body := `{"to_pubkey":"` + dest + `","amount_ui":1.5}`
	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.Equal(t, sig, result.Signature)

	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, pipeline.IntentTransfer, exec.lastIntent.Kind)
	assert.Equal(t, signer.PublicKey().String(), exec.lastIntent.Source)
	assert.Equal(t, dest, exec.lastIntent.Destination)
	assert.Equal(t, 1.5, exec.lastIntent.AmountUI)
	assert.Equal(t, config.ClusterDevnet, exec.lastIntent.Cluster)
}

func TestHandleSubmitTransfer_PublishesOutcome(t *testing.T) {
	sig := solanago.Signature{9}.String()
	exec := &fakeExecutor{result: pipeline.Result{OK: true, Signature: sig}}
	signer := testSigner(t)
	publisher := natspkg.NewMockPublisher()
	handler := handleSubmitTransfer(exec, signer, nil, publisher, testConfig(), testLogger())

	dest := solanago.NewWallet().PublicKey().String()
	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{"to_pubkey":"`+dest+`","amount_ui":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	events := publisher.GetPublishedEventsForWallet(signer.PublicKey().String())
	require.Len(t, events, 1)
	assert.Equal(t, "success", events[0].Outcome)
	assert.Equal(t, sig, events[0].Signature)
	assert.Equal(t, "transfer", events[0].Kind)
}

func TestHandleSubmitTransfer_MalformedJSON(t *testing.T) {
	exec := &fakeExecutor{}
	handler := handleSubmitTransfer(exec, testSigner(t), nil, nil, testConfig(), testLogger())

	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{"to_pubkey":`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
	assert.Equal(t, 0, exec.calls)
}

func TestHandleSubmitTransfer_BodyTooLarge(t *testing.T) {
	exec := &fakeExecutor{}
	handler := handleSubmitTransfer(exec, testSigner(t), nil, nil, testConfig(), testLogger())

	body := `{"to_pubkey":"` + strings.Repeat("A", 2<<20) + `","amount_ui":1}`
	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")
	assert.Equal(t, 0, exec.calls)
}

func TestHandleSubmitTransfer_NoSignerYieldsEmptySource(t *testing.T) {
	exec := &fakeExecutor{result: pipeline.Result{OK: false, ErrorKind: pipeline.ErrorKindInvalidInput, Message: "no wallet connected"}}
	handler := handleSubmitTransfer(exec, nil, nil, nil, testConfig(), testLogger())

	dest := solanago.NewWallet().PublicKey().String()
	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{"to_pubkey":"`+dest+`","amount_ui":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", exec.lastIntent.Source)
}

func TestHandleSubmitTransfer_StatusCodes(t *testing.T) {
	tests := []struct {
		kind     pipeline.ErrorKind
		expected int
	}{
		{pipeline.ErrorKindInvalidInput, http.StatusBadRequest},
		{pipeline.ErrorKindBackendUnreachable, http.StatusBadGateway},
		{pipeline.ErrorKindBackendRejected, http.StatusBadGateway},
		{pipeline.ErrorKindContractViolation, http.StatusBadGateway},
		{pipeline.ErrorKindMalformedEnvelope, http.StatusBadGateway},
		{pipeline.ErrorKindSigningFailed, http.StatusInternalServerError},
		{pipeline.ErrorKindConfirmationTimeout, http.StatusGatewayTimeout},
	}

	dest := solanago.NewWallet().PublicKey().String()
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			exec := &fakeExecutor{result: pipeline.Result{OK: false, ErrorKind: tt.kind}}
			handler := handleSubmitTransfer(exec, testSigner(t), nil, nil, testConfig(), testLogger())

			req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{"to_pubkey":"`+dest+`","amount_ui":1}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestHandleSubmitTransfer_TimeoutRetainsSignature(t *testing.T) {
	sig := solanago.Signature{7}.String()
	exec := &fakeExecutor{result: pipeline.Result{
		OK:        false,
		ErrorKind: pipeline.ErrorKindConfirmationTimeout,
		Signature: sig,
	}}
	handler := handleSubmitTransfer(exec, testSigner(t), nil, nil, testConfig(), testLogger())

	dest := solanago.NewWallet().PublicKey().String()
	req := httptest.NewRequest("POST", "/api/v1/transfers", strings.NewReader(`{"to_pubkey":"`+dest+`","amount_ui":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, sig, result.Signature, "ambiguous timeout still reports the signature for re-query")
}

func TestHandleSubmitSwap_EstimateOnSuccess(t *testing.T) {
	sig := solanago.Signature{4}.String()
	exec := &fakeExecutor{result: pipeline.Result{OK: true, Signature: sig}}
	handler := handleSubmitSwap(exec, testSigner(t), nil, nil, testConfig(), testLogger())

	req := httptest.NewRequest("POST", "/api/v1/swaps", strings.NewReader(`{"amount_ui":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.IntentSwap, exec.lastIntent.Kind)
	assert.Empty(t, exec.lastIntent.Destination)

	var resp swapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 2*aksolPerSOL, resp.EstimatedTokensUI)
}

func TestHandleSubmitSwap_NoEstimateOnFailure(t *testing.T) {
	exec := &fakeExecutor{result: pipeline.Result{OK: false, ErrorKind: pipeline.ErrorKindBackendRejected}}
	handler := handleSubmitSwap(exec, testSigner(t), nil, nil, testConfig(), testLogger())

	req := httptest.NewRequest("POST", "/api/v1/swaps", strings.NewReader(`{"amount_ui":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "estimated_tokens_ui")
}

func TestHandleGetActivity(t *testing.T) {
	log := activity.NewLog(3)
	log.Append("sent 1 SOL", nil)
	sig := solanago.Signature{2}.String()
	log.Append("bought AKSOL", &sig)

	handler := handleGetActivity(log, testLogger())
	req := httptest.NewRequest("GET", "/api/v1/activity", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []activity.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "bought AKSOL", resp.Records[0].Label, "newest first")
	require.NotNil(t, resp.Records[0].Signature)
	assert.Equal(t, sig, *resp.Records[0].Signature)
}

func TestHandleLookupSignature_Found(t *testing.T) {
	sig := solanago.Signature{5}
	confirmations := uint64(12)
	chain := &fakeChain{status: &solanasvc.SignatureStatus{
		Signature:          sig.String(),
		Found:              true,
		Slot:               42,
		Confirmations:      &confirmations,
		ConfirmationStatus: "confirmed",
	}}

	handler := handleLookupSignature(chain, testLogger())
	req := httptest.NewRequest("GET", "/api/v1/transactions/"+sig.String(), nil)
	req.SetPathValue("signature", sig.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp signatureStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, uint64(42), resp.Slot)
	assert.Equal(t, "confirmed", resp.ConfirmationStatus)
}

func TestHandleLookupSignature_NotFound(t *testing.T) {
	sig := solanago.Signature{6}
	chain := &fakeChain{status: &solanasvc.SignatureStatus{Signature: sig.String()}}

	handler := handleLookupSignature(chain, testLogger())
	req := httptest.NewRequest("GET", "/api/v1/transactions/"+sig.String(), nil)
	req.SetPathValue("signature", sig.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLookupSignature_InvalidSignature(t *testing.T) {
	chain := &fakeChain{}
	handler := handleLookupSignature(chain, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/transactions/not-base58", nil)
	req.SetPathValue("signature", "not-base58")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid transaction signature")
}

func TestHandleGetBalance(t *testing.T) {
	chain := &fakeChain{lamports: 2_500_000_000}
	handler := handleGetBalance(chain, testConfig(), testLogger())

	address := solanago.NewWallet().PublicKey().String()
	req := httptest.NewRequest("GET", "/api/v1/balance/"+address, nil)
	req.SetPathValue("address", address)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(2_500_000_000), resp.Lamports)
	assert.Equal(t, 2.5, resp.SOL)
	assert.Equal(t, rpc.CommitmentConfirmed, chain.lastCommitment)
}

func TestHandleGetBalance_InvalidAddress(t *testing.T) {
	handler := handleGetBalance(&fakeChain{}, testConfig(), testLogger())

	req := httptest.NewRequest("GET", "/api/v1/balance/0OIl", nil)
	req.SetPathValue("address", "0OIl")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPrice_NotConfigured(t *testing.T) {
	handler := handleGetPrice(nil, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/price", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleListHistory_NotConfigured(t *testing.T) {
	handler := handleListHistory(nil, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))

	req := httptest.NewRequest("OPTIONS", "/api/v1/transfers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
