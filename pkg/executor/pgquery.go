package executor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// pgxQuerier is the subset of *pgxpool.Pool this executor needs. Declaring
// it lets tests substitute github.com/pashagolub/pgxmock for the pool
// without opening a real Postgres connection.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PGQueryParams is the decoded Params for a NodeKindPGQuery node.
type PGQueryParams struct {
	// ConnSecret names the project secret holding the Postgres DSN. The
	// DSN is never part of Params so it never appears in a workflow
	// definition's plaintext JSON.
	ConnSecret string `json:"conn_secret"`
	Query      string `json:"query"`
}

// PGQueryExecutor runs a parameterized query against an operator-supplied
// Postgres database, connecting through a pool cached per DSN.
type PGQueryExecutor struct {
	mu    sync.Mutex
	pools map[string]pgxQuerier
}

func NewPGQueryExecutor() *PGQueryExecutor {
	return &PGQueryExecutor{pools: make(map[string]pgxQuerier)}
}

func (e *PGQueryExecutor) Kind() types.NodeKind { return types.NodeKindPGQuery }

func (e *PGQueryExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params PGQueryParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid pg_query params", err)
	}

	dsn, err := ctx.GetSecret(params.ConnSecret)
	if err != nil {
		return nil, err
	}

	pool, err := e.getOrCreatePool(ctx.Context(), dsn)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "failed to connect to postgres", err)
	}

	var args []types.Value
	if raw, ok := inputs["args"]; ok && raw != nil {
		arr, ok := raw.([]types.Value)
		if !ok {
			return nil, errs.New(errs.BindingEvalError, "\"args\" input must be an array")
		}
		args = arr
	}

	rows, err := pool.Query(ctx.Context(), params.Query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamError, "postgres query failed", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out types.ValueArray
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, errs.Wrap(errs.UpstreamError, "failed to read postgres row", err)
		}
		row := make(map[string]types.Value, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.UpstreamError, "postgres row iteration failed", err)
	}

	return out, nil
}

func (e *PGQueryExecutor) getOrCreatePool(ctx context.Context, dsn string) (pgxQuerier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pool, ok := e.pools[dsn]; ok {
		return pool, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	e.pools[dsn] = pool
	return pool, nil
}

func (e *PGQueryExecutor) Validate(node types.Node) error {
	var params PGQueryParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("query")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.Query == "" {
		return types.ErrMissingRequiredField("query")
	}
	if params.ConnSecret == "" {
		return types.ErrMissingRequiredField("conn_secret")
	}
	return nil
}
