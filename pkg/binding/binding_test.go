package binding

import (
	"context"
	"errors"
	"testing"

	"github.com/insanalamin/mechaway/pkg/sandbox"
	"github.com/insanalamin/mechaway/pkg/types"
)

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) Resolve(_ context.Context, _, name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func TestResolver_Literal(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingLiteral, Literal: "hello"}, nil, "proj")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v != "hello" {
		t.Errorf("expected \"hello\", got %v", v)
	}
}

func TestResolver_JSONPath(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	tree := map[string]types.Value{
		"nodes": map[string]types.Value{
			"fetch": []types.Value{map[string]types.Value{"name": "acme", "age": 42.0}},
		},
	}
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingJSONPath, Path: "nodes.fetch.0.name"}, tree, "proj")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v != "acme" {
		t.Errorf("expected \"acme\", got %v", v)
	}
}

func TestResolver_JSONPath_MissingOptional(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	tree := map[string]types.Value{"nodes": map[string]types.Value{}}
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingJSONPath, Path: "nodes.missing.0.x", Optional: true}, tree, "proj")
	if err != nil {
		t.Fatalf("Resolve failed for optional missing path: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for missing optional path, got %v", v)
	}
}

func TestResolver_JSONPath_MissingRequired(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	tree := map[string]types.Value{"nodes": map[string]types.Value{}}
	_, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingJSONPath, Path: "nodes.missing.0.x"}, tree, "proj")
	if err == nil {
		t.Fatal("expected error for missing required path")
	}
}

func TestResolver_Secret(t *testing.T) {
	secrets := &fakeSecrets{values: map[string]string{"api_key": "sk-test-123"}}
	r := NewResolver(sandbox.New(), secrets)
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingSecret, SecretName: "api_key"}, nil, "proj")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v != "sk-test-123" {
		t.Errorf("expected secret value, got %v", v)
	}
}

func TestResolver_Secret_MissingOptional(t *testing.T) {
	secrets := &fakeSecrets{values: map[string]string{}}
	r := NewResolver(sandbox.New(), secrets)
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingSecret, SecretName: "missing", Optional: true}, nil, "proj")
	if err != nil {
		t.Fatalf("Resolve failed for optional missing secret: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil, got %v", v)
	}
}

func TestResolver_Script(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	tree := map[string]types.Value{"nodes": map[string]types.Value{"fetch": []types.Value{map[string]types.Value{"count": 3.0}}}}
	v, err := r.Resolve(context.Background(), types.Binding{Kind: types.BindingScript, Script: "json.nodes.fetch[0].count * 2"}, tree, "proj")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if v != 6.0 {
		t.Errorf("expected 6.0, got %v", v)
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	pins := map[string]types.Binding{
		"greeting": {Kind: types.BindingLiteral, Literal: "hi"},
		"count":    {Kind: types.BindingLiteral, Literal: 1.0},
	}
	out, err := r.ResolveAll(context.Background(), pins, nil, "proj")
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if out["greeting"] != "hi" || out["count"] != 1.0 {
		t.Errorf("unexpected resolved values: %+v", out)
	}
}

func TestResolver_UnknownKind(t *testing.T) {
	r := NewResolver(sandbox.New(), nil)
	_, err := r.Resolve(context.Background(), types.Binding{Kind: "bogus"}, nil, "proj")
	if err == nil {
		t.Fatal("expected error for unknown binding kind")
	}
}
