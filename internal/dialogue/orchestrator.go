// Package dialogue runs one conversational turn end to end: validation,
// history bookkeeping, prompt assembly, the model call and reply decoding.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/brain"
	"github.com/ent0n29/sourcebot/internal/observability"
	"github.com/ent0n29/sourcebot/internal/policy"
	"github.com/ent0n29/sourcebot/internal/prompt"
	"github.com/ent0n29/sourcebot/internal/protocol"
	"github.com/ent0n29/sourcebot/internal/reliability"
	"github.com/ent0n29/sourcebot/internal/requirements"
	"github.com/ent0n29/sourcebot/internal/session"
)

// FallbackMessage replaces any reply the model failed to produce.
const FallbackMessage = "I apologize, but I encountered an error processing your request. Please try again."

const (
	DefaultModelTimeout   = 30 * time.Second
	submissionSaveTimeout = 2 * time.Second
	logPreviewRunes       = 120
)

// FallbackTurn is the plain text turn recorded when the model fails.
func FallbackTurn() protocol.AssistantTurn {
	return protocol.TextTurn(FallbackMessage)
}

// TurnInput is one proposed user turn.
type TurnInput struct {
	SessionID string
	Message   string
	Images    []string
	Documents []protocol.Document
}

// Result is the outcome of a turn that passed validation.
type Result struct {
	SessionID string
	RequestID string
	Turn      protocol.AssistantTurn
	// Diagnostic describes the upstream failure when Turn is the fallback.
	Diagnostic string
	// Err wraps brain.ErrUpstream when Turn is the fallback.
	Err error
	// Submission is set when this turn submitted a summary card.
	Submission *requirements.Record
}

// Fallback reports whether the turn carries the fallback reply.
func (r Result) Fallback() bool { return r.Err != nil }

// Options are the optional collaborators of an Orchestrator.
type Options struct {
	ModelTimeout time.Duration
	Requirements requirements.Store
	Metrics      *observability.Metrics
	Stages       *observability.StageWindow
	Logger       *zap.Logger
}

type sessionCounter interface {
	Count() int
}

type sessionInfoer interface {
	Info(sessionID string) (session.Info, bool)
}

type Orchestrator struct {
	sessions     session.Store
	model        brain.Model
	provider     string
	modelTimeout time.Duration
	requirements requirements.Store
	metrics      *observability.Metrics
	stages       *observability.StageWindow
	logger       *zap.Logger
	locks        *keyedMutex
}

func NewOrchestrator(sessions session.Store, model brain.Model, opts Options) *Orchestrator {
	timeout := opts.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		sessions:     sessions,
		model:        model,
		provider:     brain.ProviderName(model),
		modelTimeout: timeout,
		requirements: opts.Requirements,
		metrics:      opts.Metrics,
		stages:       opts.Stages,
		logger:       logger.Named("dialogue"),
		locks:        newKeyedMutex(),
	}
}

// History returns a copy of the stored turns for sessionID.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]protocol.Turn, error) {
	return o.sessions.Get(ctx, normalizeSessionID(sessionID))
}

// SessionInfo reports metadata for a known session when the store tracks it.
func (o *Orchestrator) SessionInfo(sessionID string) (session.Info, bool) {
	s, ok := o.sessions.(sessionInfoer)
	if !ok {
		return session.Info{}, false
	}
	return s.Info(normalizeSessionID(sessionID))
}

// HandleTurn validates and records the user turn, asks the model for the next
// assistant turn and records that too. Model failures never escape: they are
// replaced by the fallback turn and reported on Result. The only errors
// returned are a *policy.ValidationError, with no state changed, or a session
// store failure, or ctx.Err() when the caller is gone before the session
// is touched.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (Result, error) {
	start := time.Now()
	sessionID := normalizeSessionID(in.SessionID)
	res := Result{SessionID: sessionID, RequestID: uuid.NewString()}
	log := o.logger.With(zap.String("session_id", sessionID), zap.String("request_id", res.RequestID))

	userTurn := protocol.UserTurn{
		Content:   in.Message,
		Images:    in.Images,
		Documents: in.Documents,
	}
	if verr := policy.ValidateTurnInput(userTurn); verr != nil {
		if o.metrics != nil {
			o.metrics.ValidationRejections.WithLabelValues(verr.Reason).Inc()
		}
		log.Info("turn rejected", zap.String("reason", verr.Reason))
		return Result{}, verr
	}
	o.stages.ObserveDuration(observability.StageValidate, time.Since(start))

	unlock, err := o.locks.Lock(ctx, sessionID)
	if err != nil {
		o.recordAbandoned(log, err)
		return Result{}, err
	}
	defer unlock()
	// The caller may have gone while this turn waited for the session.
	if err := ctx.Err(); err != nil {
		o.recordAbandoned(log, err)
		return Result{}, err
	}

	if err := o.sessions.AppendUser(ctx, sessionID, userTurn); err != nil {
		return Result{}, fmt.Errorf("append user turn: %w", err)
	}
	history, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}

	buildStart := time.Now()
	req := prompt.Compose(sessionID, history, in.Message, in.Documents)
	o.stages.ObserveDuration(observability.StageContext, time.Since(buildStart))

	turn, err := o.generate(ctx, req)
	if err != nil {
		res.Err = errors.Join(brain.ErrUpstream, err)
		res.Diagnostic = res.Err.Error()
		turn = FallbackTurn()
		o.recordFailure(log, err)
	}
	res.Turn = turn

	if err := o.sessions.AppendAssistant(ctx, sessionID, turn); err != nil {
		return Result{}, fmt.Errorf("append assistant turn: %w", err)
	}

	if card := answeredCard(history, in.Message); card != nil {
		res.Submission = o.saveSubmission(ctx, log, sessionID, *card)
	}

	o.recordTurn(log, res, in.Message, time.Since(start))
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, req brain.Request) (protocol.AssistantTurn, error) {
	modelCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()

	modelStart := time.Now()
	reply, err := o.model.Generate(modelCtx, req)
	elapsed := time.Since(modelStart)
	o.stages.ObserveDuration(observability.StageModel, elapsed)
	if o.metrics != nil {
		o.metrics.ObserveModelLatency(o.provider, elapsed)
	}
	if err != nil {
		return protocol.AssistantTurn{}, err
	}
	if strings.TrimSpace(reply.Raw) == "" {
		return protocol.AssistantTurn{}, brain.ErrEmptyReply
	}
	return protocol.DecodeEnvelope([]byte(reply.Raw))
}

// answeredCard returns the summary card the user is submitting, if the turn
// is a submit and the assistant turn right before it is a card.
func answeredCard(history []protocol.Turn, text string) *protocol.Card {
	if !isSubmit(text) || len(history) < 2 {
		return nil
	}
	prev := history[len(history)-2]
	if prev.Role != protocol.RoleAssistant || prev.Assistant == nil {
		return nil
	}
	if prev.Assistant.Type != protocol.KindCard || prev.Assistant.Card == nil {
		return nil
	}
	return prev.Assistant.Card
}

func (o *Orchestrator) saveSubmission(ctx context.Context, log *zap.Logger, sessionID string, card protocol.Card) *requirements.Record {
	if o.requirements == nil {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submissionSaveTimeout)
	defer cancel()

	record, err := o.requirements.Save(saveCtx, requirements.Record{
		SessionID:    sessionID,
		Requirements: requirements.Extract(card),
		Attachments:  requirements.AttachmentURLs(card),
	})
	if err != nil {
		log.Warn("requirements save failed", zap.Error(err))
		return nil
	}
	if o.metrics != nil {
		o.metrics.Submissions.Inc()
	}
	o.stages.ObserveIndicator(observability.IndicatorSubmitted)
	log.Info("requirements submitted", zap.String("requirement_id", record.ID))
	return &record
}

func (o *Orchestrator) recordFailure(log *zap.Logger, err error) {
	cause := reliability.Classify(err)
	if o.metrics != nil {
		o.metrics.UpstreamFailures.WithLabelValues(o.provider, string(cause)).Inc()
	}
	o.stages.ObserveIndicator(observability.IndicatorFallback)
	switch cause {
	case reliability.CauseTimeout:
		o.stages.ObserveIndicator(observability.IndicatorTimeout)
	case reliability.CauseSchemaViolation, reliability.CauseMalformed:
		o.stages.ObserveIndicator(observability.IndicatorSchemaRejected)
	}
	log.Warn("model reply replaced by fallback",
		zap.String("provider", o.provider),
		zap.String("cause", string(cause)),
		zap.Bool("transient", reliability.Transient(err)),
		zap.Error(err),
	)
}

func (o *Orchestrator) recordAbandoned(log *zap.Logger, err error) {
	if o.metrics != nil {
		o.metrics.Turns.WithLabelValues("abandoned", "", "").Inc()
	}
	log.Info("turn abandoned before start", zap.String("cause", string(reliability.Classify(err))))
}

func (o *Orchestrator) recordTurn(log *zap.Logger, res Result, text string, elapsed time.Duration) {
	outcome := "ok"
	if res.Fallback() {
		outcome = "fallback"
	}
	stage := protocol.StageOf(res.Turn)
	o.stages.ObserveDuration(observability.StageTurnTotal, elapsed)
	if o.metrics != nil {
		o.metrics.Turns.WithLabelValues(outcome, string(res.Turn.Type), string(stage)).Inc()
		if c, ok := o.sessions.(sessionCounter); ok {
			o.metrics.ActiveSessions.Set(float64(c.Count()))
		}
	}
	log.Info("turn completed",
		zap.String("outcome", outcome),
		zap.String("kind", string(res.Turn.Type)),
		zap.String("stage", string(stage)),
		zap.Duration("latency", elapsed),
	)
	log.Debug("turn text", zap.String("user", policy.LogSafe(text, logPreviewRunes)))
}

func normalizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.DefaultID
	}
	return id
}
