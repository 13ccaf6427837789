package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tracesanford134/aksol-dapp/service/activity"
	"github.com/tracesanford134/aksol-dapp/service/backend"
	"github.com/tracesanford134/aksol-dapp/service/metrics"
	solanasvc "github.com/tracesanford134/aksol-dapp/service/solana"
	"github.com/tracesanford134/aksol-dapp/service/wallet"
)

// Preparer is the slice of the backend client the pipeline drives.
// This allows tests to substitute a deterministic double.
type Preparer interface {
	PrepareTransfer(ctx context.Context, params backend.TransferParams) (*backend.Prepared, error)
	PrepareSwap(ctx context.Context, params backend.SwapParams) (*backend.Prepared, error)
}

// Confirmer waits for network finality on a signature. The bound on the wait
// is imposed through ctx; the implementation owns the wait semantics.
type Confirmer interface {
	AwaitConfirmation(ctx context.Context, sig solanago.Signature, commitment rpc.CommitmentType) error
}

// defaultConfirmTimeout bounds the confirmation wait when none is configured.
const defaultConfirmTimeout = 45 * time.Second

// Pipeline orchestrates one user intent from validation through terminal
// outcome. Each Execute call is an independent unit of work; the only shared
// mutable state across invocations is the activity log.
type Pipeline struct {
	backend        Preparer
	signer         wallet.Signer
	confirmer      Confirmer
	activity       *activity.Log
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Params collects the pipeline's collaborators. Backend, Signer, and
// Confirmer are required; everything else has a sensible default.
type Params struct {
	Backend        Preparer
	Signer         wallet.Signer
	Confirmer      Confirmer
	Activity       *activity.Log
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// New creates a pipeline. The signer and confirmer handles are owned by the
// host environment; the pipeline never constructs or closes either.
func New(p Params) *Pipeline {
	if p.Activity == nil {
		p.Activity = activity.NewLog(0)
	}
	if p.Commitment == "" {
		p.Commitment = rpc.CommitmentConfirmed
	}
	if p.ConfirmTimeout <= 0 {
		p.ConfirmTimeout = defaultConfirmTimeout
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Pipeline{
		backend:        p.Backend,
		signer:         p.Signer,
		confirmer:      p.Confirmer,
		activity:       p.Activity,
		commitment:     p.Commitment,
		confirmTimeout: p.ConfirmTimeout,
		metrics:        p.Metrics,
		logger:         p.Logger,
	}
}

// Activity returns the pipeline's activity log for display.
func (p *Pipeline) Activity() *activity.Log {
	return p.activity
}

// Execute runs an intent to its terminal outcome. It returns exactly one
// Result and appends exactly one activity record regardless of path taken.
func (p *Pipeline) Execute(ctx context.Context, intent Intent) Result {
	result := p.run(ctx, intent)

	var sigPtr *string
	if result.Signature != "" {
		sigPtr = &result.Signature
	}
	p.activity.Append(p.label(intent, result), sigPtr)

	if p.metrics != nil {
		outcome := "success"
		if !result.OK {
			outcome = "failure"
		}
		p.metrics.RecordPipelineExecution(string(intent.Kind), outcome, string(result.ErrorKind))
	}

	if result.OK {
		p.logger.InfoContext(ctx, "pipeline execution succeeded",
			"intent", string(intent.Kind),
			"signature", result.Signature,
		)
	} else {
		p.logger.WarnContext(ctx, "pipeline execution failed",
			"intent", string(intent.Kind),
			"error_kind", string(result.ErrorKind),
			"signature", result.Signature,
			"message", result.Message,
		)
	}
	return result
}

// run walks the state machine: Validating → Preparing → {Confirming |
// Signing → Broadcasting → Confirming} → Terminal.
func (p *Pipeline) run(ctx context.Context, intent Intent) Result {
	// Validating: fail fast, no network call.
	if kind, detail := p.validate(intent); kind != "" {
		return failure(kind, detail)
	}

	// Preparing: one backend call, never retried automatically.
	start := time.Now()
	prepared, err := p.prepare(ctx, intent)
	if p.metrics != nil {
		p.metrics.RecordPipelineStage("prepare", time.Since(start).Seconds())
	}
	if err != nil {
		return classifyBackendError(err)
	}

	var sig solanago.Signature
	switch prepared.Kind {
	case backend.KindBroadcasted:
		// Fast path: the backend already submitted. Its signature is the
		// terminal identifier, but a reported signature is not proof of
		// finality, so the confirming step still runs.
		sig, err = solanago.SignatureFromBase58(prepared.Signature)
		if err != nil {
			return failure(ErrorKindContractViolation, "backend signature is not valid base58")
		}

	case backend.KindUnsigned:
		sig, err = p.signAndBroadcast(ctx, prepared.Envelope)
		if err != nil {
			return classifySlowPathError(err)
		}

	default:
		return failure(ErrorKindContractViolation, "backend response has no recognizable shape")
	}

	// Confirming: a single bounded wait. Whatever goes wrong past this point,
	// the signature travels with the failure so the caller can re-query.
	start = time.Now()
	cctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()
	err = p.confirmer.AwaitConfirmation(cctx, sig, p.commitment)
	if p.metrics != nil {
		p.metrics.RecordPipelineStage("confirm", time.Since(start).Seconds())
	}
	if err != nil {
		detail := "confirmation not established within the bound"
		if !errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("confirmation wait ended early: %v", err)
		}
		return failureWithSignature(ErrorKindConfirmationTimeout, detail, sig.String())
	}

	return success(sig.String())
}

// prepare routes the intent to the matching backend operation.
func (p *Pipeline) prepare(ctx context.Context, intent Intent) (*backend.Prepared, error) {
	if intent.Kind == IntentSwap {
		return p.backend.PrepareSwap(ctx, backend.SwapParams{
			FromPubkey: intent.Source,
			AmountUI:   intent.AmountUI,
			Cluster:    intent.Cluster,
		})
	}
	return p.backend.PrepareTransfer(ctx, backend.TransferParams{
		FromPubkey: intent.Source,
		ToPubkey:   intent.Destination,
		AmountUI:   intent.AmountUI,
		Cluster:    intent.Cluster,
	})
}

// signAndBroadcast is the slow path: decode the envelope, point the fee payer
// at the wallet, sign, and submit through the wallet's send operation.
func (p *Pipeline) signAndBroadcast(ctx context.Context, envelope string) (solanago.Signature, error) {
	start := time.Now()
	decoded, err := solanasvc.DecodeEnvelope(envelope)
	if err != nil {
		return solanago.Signature{}, err
	}
	if err := decoded.SetFeePayer(p.signer.PublicKey()); err != nil {
		return solanago.Signature{}, fmt.Errorf("%w: %v", solanasvc.ErrMalformedEnvelope, err)
	}
	p.logger.DebugContext(ctx, "envelope decoded",
		"format", string(decoded.Format),
		"fee_payer", p.signer.PublicKey().String(),
	)

	if err := p.signer.SignTransaction(ctx, decoded.Tx); err != nil {
		return solanago.Signature{}, fmt.Errorf("sign: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPipelineStage("sign", time.Since(start).Seconds())
	}

	start = time.Now()
	sig, err := p.signer.SendTransaction(ctx, decoded.Tx)
	if p.metrics != nil {
		p.metrics.RecordPipelineStage("broadcast", time.Since(start).Seconds())
	}
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("broadcast: %w", err)
	}
	return sig, nil
}

// classifyBackendError maps a backend client error onto the taxonomy.
func classifyBackendError(err error) Result {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		return failure(ErrorKindBackendRejected, rejected.Error())
	case errors.Is(err, backend.ErrContractViolation):
		return failure(ErrorKindContractViolation, err.Error())
	case errors.Is(err, backend.ErrUnreachable):
		return failure(ErrorKindBackendUnreachable, err.Error())
	default:
		// Anything else from the prepare round-trip is still a boundary
		// failure with no response we can act on.
		return failure(ErrorKindBackendUnreachable, err.Error())
	}
}

// classifySlowPathError maps decode/sign/broadcast errors onto the taxonomy.
func classifySlowPathError(err error) Result {
	if errors.Is(err, solanasvc.ErrMalformedEnvelope) {
		return failure(ErrorKindMalformedEnvelope, err.Error())
	}
	// Signing and submission both run through the wallet capability; either
	// failing is fatal to the invocation and never retried.
	return failure(ErrorKindSigningFailed, err.Error())
}

// label renders the activity feed line for a terminal outcome.
func (p *Pipeline) label(intent Intent, result Result) string {
	amount := strconv.FormatFloat(intent.AmountUI, 'f', -1, 64)
	verb := fmt.Sprintf("Transfer of %s SOL", amount)
	if intent.Kind == IntentSwap {
		verb = fmt.Sprintf("Purchase of %s SOL via fee-free route", amount)
	}
	if result.OK {
		return verb + " confirmed"
	}
	return fmt.Sprintf("%s failed: %s", verb, result.ErrorKind)
}
