package binding

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/sandbox"
	"github.com/insanalamin/mechaway/pkg/types"
)

// SecretResolver looks up a project secret by name, decrypting it on
// demand. Implemented by pkg/secrets.Resolver; declared here so pkg/binding
// doesn't import pkg/secrets and pkg/secrets doesn't need to know about the
// Binding DSL.
type SecretResolver interface {
	Resolve(ctx context.Context, projectID, name string) (string, error)
}

// Resolver evaluates Bindings against an activation's accumulated node
// outputs. A Resolver is stateless beyond its collaborators and safe for
// concurrent use.
type Resolver struct {
	sandbox *sandbox.Sandbox
	secrets SecretResolver
}

func NewResolver(sb *sandbox.Sandbox, secrets SecretResolver) *Resolver {
	return &Resolver{sandbox: sb, secrets: secrets}
}

// Resolve evaluates a single Binding. tree is the activation's current
// output tree (typically {"trigger": ..., "nodes": {id: [...]}}), used as
// the source document for json_path lookups and as the "json" variable
// available to script bindings. projectID scopes secret lookups.
func (r *Resolver) Resolve(ctx context.Context, b types.Binding, tree map[string]types.Value, projectID string) (types.Value, error) {
	switch b.Kind {
	case types.BindingLiteral:
		return b.Literal, nil

	case types.BindingJSONPath:
		return r.resolveJSONPath(b, tree)

	case types.BindingSecret:
		if r.secrets == nil {
			return nil, errs.New(errs.MissingSecret, "no secret resolver configured")
		}
		val, err := r.secrets.Resolve(ctx, projectID, b.SecretName)
		if err != nil {
			if b.Optional {
				return nil, nil
			}
			return nil, err
		}
		return val, nil

	case types.BindingScript:
		env := sandbox.BuildEnv(map[string]interface{}{"json": map[string]types.Value(tree)})
		out, err := r.sandbox.Eval(ctx, b.Script, env)
		if err != nil {
			if b.Optional {
				return nil, nil
			}
			return nil, err
		}
		return out, nil

	default:
		return nil, errs.Newf(errs.BindingEvalError, "unknown binding kind %q", b.Kind)
	}
}

// ResolveAll resolves every pin in pins, returning a flat map keyed by pin
// name, suitable for an executor.ExecutionContext.ResolveInputs
// implementation.
func (r *Resolver) ResolveAll(ctx context.Context, pins map[string]types.Binding, tree map[string]types.Value, projectID string) (map[string]types.Value, error) {
	out := make(map[string]types.Value, len(pins))
	for name, b := range pins {
		v, err := r.Resolve(ctx, b, tree, projectID)
		if err != nil {
			return nil, errs.Wrap(errs.BindingEvalError, "resolving input pin \""+name+"\"", err)
		}
		out[name] = v
	}
	return out, nil
}

func (r *Resolver) resolveJSONPath(b types.Binding, tree map[string]types.Value) (types.Value, error) {
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to marshal binding context", err)
	}

	result := gjson.GetBytes(doc, normalizeDataPath(b.Path))
	if !result.Exists() {
		if b.Optional {
			return nil, nil
		}
		return nil, errs.Newf(errs.BindingEvalError, "json_path %q did not resolve against the activation context", b.Path)
	}

	var v types.Value
	if err := json.Unmarshal([]byte(result.Raw), &v); err != nil {
		// Scalars like bare strings may not round-trip through Raw as
		// valid JSON on their own; fall back to the typed Value.
		return result.Value(), nil
	}
	return v, nil
}

var dataBracketIndex = regexp.MustCompile(`^\[(\d+)\]`)

// normalizeDataPath rewrites a path rooted at "data" (the node's
// concatenated predecessor outputs) into gjson's dot-indexed array syntax,
// indexing the first element when the path leaves the array position
// implicit: "data.score" becomes "data.0.score", "data[1].score" becomes
// "data.1.score", and an already-explicit "data.1.score" passes through
// unchanged. Paths not rooted at "data" are returned as-is.
func normalizeDataPath(path string) string {
	if path != "data" && !strings.HasPrefix(path, "data.") && !strings.HasPrefix(path, "data[") {
		return path
	}

	rest := strings.TrimPrefix(path, "data")
	if m := dataBracketIndex.FindStringSubmatch(rest); m != nil {
		rest = strings.TrimPrefix(rest, m[0])
		rest = strings.TrimPrefix(rest, ".")
		if rest == "" {
			return "data." + m[1]
		}
		return "data." + m[1] + "." + rest
	}

	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return "data.0"
	}

	firstSeg := rest
	if i := strings.Index(rest, "."); i >= 0 {
		firstSeg = rest[:i]
	}
	if _, err := strconv.Atoi(firstSeg); err == nil {
		return "data." + rest
	}
	return "data.0." + rest
}
