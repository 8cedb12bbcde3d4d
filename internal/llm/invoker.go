// Package llm is the boundary to the inference collaborator: one outbound
// request per extraction, no retries, no state kept between calls.
package llm

import (
	"context"
	"strings"
	"time"
)

const (
	MinTemperature     float32 = 0.1
	MaxTemperature     float32 = 0.2
	DefaultTemperature float32 = 0.2
)

// Request is a single model turn: the contract instruction as the system
// turn, and either document text or an image reference in the user turn.
type Request struct {
	Instruction string
	Prompt      string
	Text        string
	ImageURL    string
	Temperature float32
}

// UserText joins the prompt lead-in and document text.
func (r Request) UserText() string {
	if strings.TrimSpace(r.Text) == "" {
		return r.Prompt
	}
	if r.Prompt == "" {
		return r.Text
	}
	return r.Prompt + "\n\n" + r.Text
}

// Response carries the model's text verbatim. Succeeded is false when the
// collaborator answered but produced no content.
type Response struct {
	RawText    string
	Succeeded  bool
	HTTPStatus int
	Model      string
	Elapsed    time.Duration
}

// Invoker sends one request to an inference provider. Implementations honour
// ctx cancellation and their own configured timeout.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// ClampTemperature keeps t inside [MinTemperature, MaxTemperature]; zero
// selects DefaultTemperature.
func ClampTemperature(t float32) float32 {
	switch {
	case t == 0:
		return DefaultTemperature
	case t < MinTemperature:
		return MinTemperature
	case t > MaxTemperature:
		return MaxTemperature
	default:
		return t
	}
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
