// Package llm wraps the chat-completion vendors behind a single Provider
// interface so callers never depend on a vendor SDK directly.
package llm

import (
	"context"
	"errors"
)

var (
	ErrNoProvider    = errors.New("llm: no provider configured")
	ErrEmptyResponse = errors.New("llm: empty response")
)

const defaultMaxTokens = 1024

type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

type Response struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

// Provider is one vendor adapter.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

func maxTokens(req Request) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	return defaultMaxTokens
}
