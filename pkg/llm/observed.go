package llm

import (
	"context"
	"time"

	"github.com/harunnryd/mockview/pkg/errorsx"
	"github.com/harunnryd/mockview/pkg/metrics"
)

// ObservedAdapter records an llm_done event with latency and token usage for
// every call.
type ObservedAdapter struct {
	inner LLMAdapter
	obs   metrics.Observer
}

func NewObservedAdapter(inner LLMAdapter, obs metrics.Observer) *ObservedAdapter {
	return &ObservedAdapter{inner: inner, obs: obs}
}

func (a *ObservedAdapter) Name() string { return a.inner.Name() }

func (a *ObservedAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	started := time.Now()
	resp, err := a.inner.Generate(ctx, input)
	fields := map[string]any{
		"latency_ms":        time.Since(started).Milliseconds(),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	}
	tags := map[string]string{
		"provider": a.inner.Name(),
		"task":     input.Task,
		"status":   "ok",
	}
	if err != nil {
		tags["status"] = "error"
		tags["reason_code"] = string(errorsx.Reason(err))
		fields["error"] = err.Error()
	}
	metrics.Record(a.obs, metrics.EventLLMDone, metrics.SessionFrom(ctx), tags, fields)
	return resp, err
}
