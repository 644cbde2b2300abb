package llm

import (
	"context"
	"errors"
	"testing"
)

type scriptedProvider struct {
	name    string
	results []error
	text    string
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.results) && p.results[idx] != nil {
		return Response{}, p.results[idx]
	}
	return Response{Text: p.text}, nil
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil).Generate(context.Background(), Request{User: "x"})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestChainLen(t *testing.T) {
	chain := NewChain([]Provider{&scriptedProvider{name: "a"}, &scriptedProvider{name: "b"}})
	if chain.Len() != 2 {
		t.Fatalf("expected 2 providers, got %d", chain.Len())
	}
}

func TestChainRetriesThenSucceeds(t *testing.T) {
	boom := errors.New("boom")
	p := &scriptedProvider{name: "a", results: []error{boom, boom}, text: "ok"}
	chain := NewChain([]Provider{p}, WithMaxRetries(2), WithBackoff(0))

	resp, err := chain.Generate(context.Background(), Request{User: "x"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text != "ok" || resp.Provider != "a" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", p.calls)
	}
}

func TestChainFallsBackToNextProvider(t *testing.T) {
	boom := errors.New("boom")
	first := &scriptedProvider{name: "a", results: []error{boom, boom, boom, boom, boom}}
	second := &scriptedProvider{name: "b", text: "from b"}
	chain := NewChain([]Provider{first, second}, WithMaxRetries(1), WithBackoff(0))

	resp, err := chain.Generate(context.Background(), Request{User: "x"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Provider != "b" || resp.Text != "from b" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if first.calls != 2 {
		t.Fatalf("expected first provider to be tried twice, got %d", first.calls)
	}
}

func TestChainRetryBudgetIsCapped(t *testing.T) {
	boom := errors.New("boom")
	results := make([]error, 10)
	for i := range results {
		results[i] = boom
	}
	p := &scriptedProvider{name: "a", results: results}
	chain := NewChain([]Provider{p}, WithMaxRetries(9), WithBackoff(0))

	_, err := chain.Generate(context.Background(), Request{User: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
	if p.calls != maxRetriesCap+1 {
		t.Fatalf("expected %d calls, got %d", maxRetriesCap+1, p.calls)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	boom := errors.New("boom")
	p := &scriptedProvider{name: "a", results: []error{boom, boom, boom}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain([]Provider{p}, WithBackoff(0)).Generate(ctx, Request{User: "x"})
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if p.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", p.calls)
	}
}
