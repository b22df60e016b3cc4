package middleware

import (
	"errors"
	"testing"

	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/types"
)

func TestRetryMiddleware_SucceedsWithoutRetry(t *testing.T) {
	m := NewRetryMiddleware()
	node := types.Node{ID: "n1", Kind: types.NodeKindScript}

	calls := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		calls++
		return "ok", nil
	}

	result, err := m.Process(nil, node, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %v", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryMiddleware_RetriesThenSucceeds(t *testing.T) {
	m := NewRetryMiddlewareWithConfig(RetryConfig{MaxRetries: 3, InitialBackoff: 0, MaxBackoff: 0, BackoffFactor: 1})
	node := types.Node{ID: "n1", Kind: types.NodeKindScript}

	calls := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient failure")
		}
		return "ok", nil
	}

	result, err := m.Process(nil, node, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %v", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryMiddleware_ExhaustsRetries(t *testing.T) {
	m := NewRetryMiddlewareWithConfig(RetryConfig{MaxRetries: 2, InitialBackoff: 0, MaxBackoff: 0, BackoffFactor: 1})
	node := types.Node{ID: "n1", Kind: types.NodeKindScript}

	calls := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		calls++
		return nil, errors.New("permanent failure")
	}

	_, err := m.Process(nil, node, handler)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestConditionalRetryMiddleware_RetriesOnlyMatchingErrors(t *testing.T) {
	m := NewConditionalRetryMiddleware([]string{"rate limit"})
	node := types.Node{ID: "n1", Kind: types.NodeKindHTTPClient}

	calls := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		calls++
		return nil, errors.New("permission denied")
	}

	_, err := m.Process(nil, node, handler)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retries for a non-retryable error, got %d calls", calls)
	}
}

func TestConditionalRetryMiddleware_RetriesMatchingErrorThenSucceeds(t *testing.T) {
	m := NewConditionalRetryMiddleware([]string{"rate limit"})
	node := types.Node{ID: "n1", Kind: types.NodeKindHTTPClient}

	calls := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("hit rate limit, try again")
		}
		return "ok", nil
	}

	result, err := m.Process(nil, node, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %v", result)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
