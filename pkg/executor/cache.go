package executor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/state"
	"github.com/insanalamin/mechaway/pkg/types"
)

// CacheParams is the decoded Params for a NodeKindCache node.
type CacheParams struct {
	Key        string `json:"key"`
	TTLSeconds int    `json:"ttl_seconds"`
	// Mode is "get" or "set"; "set" requires a "value" input pin.
	Mode string `json:"mode"`
}

// CacheExecutor is a project-scoped, in-process TTL cache: one
// state.Manager per project slug, so no key a workflow writes is ever
// visible to another project. The cache outlives any single activation,
// which is what lets it serve as idempotent-ish memoization across
// HTTPClient fan-out in later activations.
type CacheExecutor struct {
	mu       sync.Mutex
	projects map[string]*state.Manager
}

func NewCacheExecutor() *CacheExecutor {
	return &CacheExecutor{projects: make(map[string]*state.Manager)}
}

func (e *CacheExecutor) Kind() types.NodeKind { return types.NodeKindCache }

func (e *CacheExecutor) managerFor(projectSlug string) *state.Manager {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.projects[projectSlug]
	if !ok {
		m = state.New()
		e.projects[projectSlug] = m
	}
	return m
}

func (e *CacheExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params CacheParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid cache params", err)
	}

	mgr := e.managerFor(types.GetProjectSlug(ctx.Context()))

	switch params.Mode {
	case "set":
		value := inputs["value"]
		mgr.Set(params.Key, value, time.Duration(params.TTLSeconds)*time.Second)
		return types.ValueArray{value}, nil

	case "get":
		value, ok := mgr.Get(params.Key)
		if !ok {
			return types.ValueArray{nil}, nil
		}
		return types.ValueArray{value}, nil

	default:
		return nil, errs.Newf(errs.InvalidGraph, "cache node: unknown mode %q (must be \"get\" or \"set\")", params.Mode)
	}
}

func (e *CacheExecutor) Validate(node types.Node) error {
	var params CacheParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("key")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.Key == "" {
		return types.ErrMissingRequiredField("key")
	}
	if params.Mode != "get" && params.Mode != "set" {
		return types.ErrInvalidFieldValue("mode", params.Mode, "must be \"get\" or \"set\"")
	}
	return nil
}
