package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tracesanford134/aksol-dapp/service/activity"
	"github.com/tracesanford134/aksol-dapp/service/config"
	"github.com/tracesanford134/aksol-dapp/service/db"
	natspkg "github.com/tracesanford134/aksol-dapp/service/nats"
	"github.com/tracesanford134/aksol-dapp/service/pipeline"
	solanasvc "github.com/tracesanford134/aksol-dapp/service/solana"
	"github.com/tracesanford134/aksol-dapp/service/ticker"
	"github.com/tracesanford134/aksol-dapp/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a transfer form
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	lamportsPerSOL = 1_000_000_000

	// aksolPerSOL is a placeholder quote used only for the panel's estimate
	// display. The backend's route decides the real fill.
	aksolPerSOL = 1500.0
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// executor runs one intent through the submission pipeline. Satisfied by
// *pipeline.Pipeline; tests substitute a fake.
type executor interface {
	Execute(ctx context.Context, intent pipeline.Intent) pipeline.Result
}

// chainReader is the slice of the Solana client the read handlers need.
type chainReader interface {
	LookupSignature(ctx context.Context, sig solanago.Signature) (*solanasvc.SignatureStatus, error)
	Balance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

type submitTransferRequest struct {
	ToPubkey string  `json:"to_pubkey"`
	AmountUI float64 `json:"amount_ui"`
}

type submitSwapRequest struct {
	AmountUI float64 `json:"amount_ui"` // SOL spent
}

type swapResponse struct {
	pipeline.Result
	EstimatedTokensUI float64 `json:"estimated_tokens_ui,omitempty"`
}

// handleSubmitTransfer returns a handler that runs a transfer intent through
// the pipeline and reports the terminal result.
// POST /api/v1/transfers
func handleSubmitTransfer(pl executor, signer wallet.Signer, store *db.Store, publisher natspkg.Publisher, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitTransferRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}

		intent := pipeline.Intent{
			Kind:        pipeline.IntentTransfer,
			Source:      connectedAddress(signer),
			Destination: req.ToPubkey,
			AmountUI:    req.AmountUI,
			Cluster:     cfg.Cluster,
		}

		result := pl.Execute(r.Context(), intent)
		recordOutcome(r.Context(), store, publisher, intent, result, logger)
		writeJSON(w, result, statusForResult(result))
	})
}

// handleSubmitSwap returns a handler that runs a swap intent through the
// pipeline. The estimated token output is a display-only figure.
// POST /api/v1/swaps
func handleSubmitSwap(pl executor, signer wallet.Signer, store *db.Store, publisher natspkg.Publisher, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitSwapRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}

		intent := pipeline.Intent{
			Kind:     pipeline.IntentSwap,
			Source:   connectedAddress(signer),
			AmountUI: req.AmountUI,
			Cluster:  cfg.Cluster,
		}

		result := pl.Execute(r.Context(), intent)
		recordOutcome(r.Context(), store, publisher, intent, result, logger)

		resp := swapResponse{Result: result}
		if result.OK {
			resp.EstimatedTokensUI = req.AmountUI * aksolPerSOL
		}
		writeJSON(w, resp, statusForResult(result))
	})
}

// handleGetActivity returns the panel's recent-outcomes feed, newest first.
// GET /api/v1/activity
func handleGetActivity(log *activity.Log, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := log.Records()
		logger.DebugContext(r.Context(), "activity retrieved", "count", len(records))
		writeJSON(w, map[string][]activity.Record{"records": records}, http.StatusOK)
	})
}

type signatureStatusResponse struct {
	Signature          string  `json:"signature"`
	Found              bool    `json:"found"`
	Slot               uint64  `json:"slot,omitempty"`
	Confirmations      *uint64 `json:"confirmations,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status,omitempty"`
	Err                *string `json:"err,omitempty"`
}

// handleLookupSignature returns the current on-chain status of a signature.
// This is the re-query path after an ambiguous confirmation timeout.
// GET /api/v1/transactions/{signature}
func handleLookupSignature(chain chainReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("signature")

		sig, err := solanago.SignatureFromBase58(raw)
		if err != nil {
			logger.Debug("invalid signature", "signature", raw, "error", err)
			writeError(w, "invalid transaction signature", http.StatusBadRequest)
			return
		}

		status, err := chain.LookupSignature(r.Context(), sig)
		if err != nil {
			logger.Error("failed to look up signature", "signature", raw, "error", err)
			writeError(w, "failed to look up signature", http.StatusBadGateway)
			return
		}

		resp := signatureStatusResponse{
			Signature:          status.Signature,
			Found:              status.Found,
			Slot:               status.Slot,
			Confirmations:      status.Confirmations,
			ConfirmationStatus: status.ConfirmationStatus,
			Err:                status.Err,
		}
		code := http.StatusOK
		if !status.Found {
			code = http.StatusNotFound
		}
		writeJSON(w, resp, code)
	})
}

type balanceResponse struct {
	Address  string  `json:"address"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

// handleGetBalance returns the lamport balance of an address.
// GET /api/v1/balance/{address}
func handleGetBalance(chain chainReader, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		account, err := solanago.PublicKeyFromBase58(address)
		if err != nil {
			writeError(w, "address is not a valid public key", http.StatusBadRequest)
			return
		}

		lamports, err := chain.Balance(r.Context(), account, cfg.CommitmentType())
		if err != nil {
			logger.Error("failed to get balance", "address", address, "error", err)
			writeError(w, "failed to fetch balance", http.StatusBadGateway)
			return
		}

		writeJSON(w, balanceResponse{
			Address:  address,
			Lamports: lamports,
			SOL:      float64(lamports) / lamportsPerSOL,
		}, http.StatusOK)
	})
}

// handleGetPrice returns the latest SOL/USD quote from the ticker.
// GET /api/v1/price
func handleGetPrice(tk *ticker.Ticker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tk == nil {
			writeError(w, "price feed not configured", http.StatusServiceUnavailable)
			return
		}
		quote, ok := tk.Current()
		if !ok {
			writeError(w, "price not yet available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, quote, http.StatusOK)
	})
}

type historyItem struct {
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

// handleListHistory returns persisted outcomes, newest first.
// GET /api/v1/history?wallet={address}&limit={n}
func handleListHistory(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "history store not configured", http.StatusServiceUnavailable)
			return
		}

		walletAddr := r.URL.Query().Get("wallet")
		if walletAddr != "" {
			if err := validateAddress(walletAddr); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			if n > maxHistoryLimit {
				n = maxHistoryLimit
			}
			limit = n
		}

		records, err := store.ListTransfers(r.Context(), walletAddr, limit)
		if err != nil {
			logger.Error("failed to list history", "wallet", walletAddr, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		items := make([]historyItem, len(records))
		for i, rec := range records {
			items[i] = historyItem{
				ID:          rec.ID,
				Wallet:      rec.Wallet,
				Destination: rec.Destination,
				Kind:        rec.Kind,
				AmountUI:    rec.AmountUI,
				Cluster:     rec.Cluster,
				Outcome:     rec.Outcome,
				ErrorKind:   rec.ErrorKind,
				Signature:   rec.Signature,
				CreatedAt:   rec.CreatedAt,
			}
		}
		writeJSON(w, map[string][]historyItem{"transfers": items}, http.StatusOK)
	})
}

// decodeRequest decodes a JSON request body with a size cap. On failure it
// writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, "request body too large", http.StatusBadRequest)
			return false
		}
		logger.Debug("invalid request body", "error", err)
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// connectedAddress returns the signer's address, or "" when no wallet is
// attached. The pipeline rejects the empty source during validation.
func connectedAddress(signer wallet.Signer) string {
	if signer == nil || !signer.Connected() {
		return ""
	}
	return signer.PublicKey().String()
}

// recordOutcome persists and publishes a terminal result. Both sinks are
// best effort; a sink failure never changes the pipeline's reported result.
// The parent's cancellation is dropped so a client disconnect after the
// pipeline finishes cannot lose the record.
func recordOutcome(ctx context.Context, store *db.Store, publisher natspkg.Publisher, intent pipeline.Intent, result pipeline.Result, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if store != nil {
		outcome := "success"
		var errKind *string
		if !result.OK {
			outcome = "failure"
			kind := string(result.ErrorKind)
			errKind = &kind
		}
		var sig *string
		if result.Signature != "" {
			s := result.Signature
			sig = &s
		}
		var dest *string
		if intent.Kind == pipeline.IntentTransfer {
			d := intent.Destination
			dest = &d
		}

		_, err := store.RecordTransfer(ctx, db.CreateTransferParams{
			Wallet:      intent.Source,
			Destination: dest,
			Kind:        string(intent.Kind),
			AmountUI:    intent.AmountUI,
			Cluster:     intent.Cluster,
			Outcome:     outcome,
			ErrorKind:   errKind,
			Signature:   sig,
		})
		if err != nil {
			logger.Error("failed to persist outcome", "wallet", intent.Source, "error", err)
		}
	}

	if publisher != nil {
		if err := publisher.PublishOutcome(ctx, natspkg.FromResult(intent, result)); err != nil {
			logger.Error("failed to publish outcome event", "wallet", intent.Source, "error", err)
		}
	}
}

// statusForResult maps a pipeline result to an HTTP status code.
func statusForResult(result pipeline.Result) int {
	if result.OK {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case pipeline.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case pipeline.ErrorKindBackendUnreachable,
		pipeline.ErrorKindBackendRejected,
		pipeline.ErrorKindContractViolation,
		pipeline.ErrorKindMalformedEnvelope:
		return http.StatusBadGateway
	case pipeline.ErrorKindConfirmationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for format and size.
func validateAddress(address string) error {
	if address == "" {
		return errors.New("address is required")
	}

	if len(address) > maxAddressLength {
		return errors.New("address too long")
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errors.New("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errors.New("invalid address format: must be base58 encoded")
	}

	return nil
}
