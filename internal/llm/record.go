package llm

import (
	"context"
	"time"

	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/store"
)

type purposeKey struct{}

// Purposes label what a request was for in the request log.
const (
	PurposeStageDecomposition = "stage_decomposition"
	PurposeUnknown            = "unknown"
)

// WithPurpose labels requests made with ctx.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok {
		return v
	}
	return PurposeUnknown
}

// recording logs every request and appends it to the event log.
type recording struct {
	inner    Provider
	provider string
	events   store.EventRepo
	log      *logging.Logger
	now      func() time.Time
}

// WithRecording wraps p so each call is logged and stored as an LLM request
// event. events may be nil. Failures to store the event are logged only.
func WithRecording(p Provider, provider string, events store.EventRepo, logger *logging.Logger) Provider {
	return &recording{inner: p, provider: provider, events: events, log: logging.OrNop(logger), now: time.Now}
}

func (r *recording) Generate(ctx context.Context, req Request) (*Response, error) {
	start := r.now()
	resp, err := r.inner.Generate(ctx, req)

	ev := store.LLMRequestEventData{
		Provider:  r.provider,
		Model:     r.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: r.now().Sub(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		ev.Model = resp.Model
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		r.log.Warn("llm request failed", "provider", ev.Provider, "model", ev.Model, "purpose", ev.Purpose, "error", err)
	} else {
		r.log.Debug("llm request", "provider", ev.Provider, "model", ev.Model, "purpose", ev.Purpose,
			"input_tokens", ev.InputTokens, "output_tokens", ev.OutputTokens, "latency_ms", ev.LatencyMs)
	}

	if r.events != nil {
		if aerr := r.events.AppendLLMRequest(ctx, ev); aerr != nil {
			r.log.Warn("append llm request event", "error", aerr)
		}
	}
	return resp, err
}

func (r *recording) ModelID() string { return r.inner.ModelID() }
