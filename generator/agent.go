package generator

import (
	"context"
	"errors"
	"time"

	"auto_thread_publisher/metrics"
)

// Agent 负责根据请求生成或修订推文串。
type Agent struct {
	llm   LLMClient
	tones Tones
}

func NewAgent(llm LLMClient, tones Tones) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if tones == nil {
		tones = DefaultTones()
	}
	return &Agent{llm: llm, tones: tones}, nil
}

// Generate runs prompt building, the completion call and thread parsing.
// Revisions pass a request whose context already carries the feedback.
func (a *Agent) Generate(ctx context.Context, req Request) (Thread, error) {
	prompt, err := BuildPrompt(req, a.tones)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	metrics.ObserveGeneration(start)
	if err != nil {
		metrics.GenerationErrors.Inc()
		return nil, &GenerationError{Reason: "completion request failed", Err: err}
	}

	posts := ParseThread(raw)
	if len(posts) == 0 {
		metrics.GenerationErrors.Inc()
		return nil, &GenerationError{Reason: "model returned no usable posts"}
	}
	return posts, nil
}
