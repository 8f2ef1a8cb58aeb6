package generator

import (
	"context"
	"errors"
	"time"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// ErrGeneration is matched by every *GenerationError.
var ErrGeneration = errors.New("generation failed")

// GenerationError wraps a failed call to the completion service.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation: " + e.Reason
	}
	return "generation: " + e.Reason + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
