package executor

import (
	"encoding/json"
	"testing"

	"github.com/insanalamin/mechaway/pkg/types"
)

func TestTableQueryExecutor_PassesWhereAndArgsThrough(t *testing.T) {
	store := newFakeProjectStore()
	store.rows["events"] = []map[string]types.Value{{"id": float64(1)}}

	e := NewTableQueryExecutor(100)
	params, _ := json.Marshal(TableQueryParams{Table: "events", Where: "status = ?"})
	node := types.Node{ID: "tq", Kind: types.NodeKindTableQuery, Params: params}
	inputs := map[string]types.Value{"args": []types.Value{"active"}}

	out, err := e.Execute(newFakeExecutionContext("proj", inputs).withStore(store), node, inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if store.where != "status = ?" {
		t.Errorf("expected where clause forwarded, got %q", store.where)
	}
	if len(store.args) != 1 || store.args[0] != "active" {
		t.Errorf("expected args forwarded, got %v", store.args)
	}
}

func TestTableQueryExecutor_ForwardsLimitAndOrderBy(t *testing.T) {
	store := newFakeProjectStore()
	store.rows["events"] = []map[string]types.Value{{"id": float64(1)}}

	e := NewTableQueryExecutor(100)
	params, _ := json.Marshal(TableQueryParams{Table: "events", Where: "1=1", Limit: 25, OrderBy: "created_at desc"})
	node := types.Node{ID: "tq", Kind: types.NodeKindTableQuery, Params: params}

	if _, err := e.Execute(newFakeExecutionContext("proj", nil).withStore(store), node, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.orderBy != "created_at desc" {
		t.Errorf("expected order_by forwarded, got %q", store.orderBy)
	}
	if store.limit != 25 {
		t.Errorf("expected limit forwarded, got %d", store.limit)
	}
}

func TestTableQueryExecutor_RejectsNonArrayArgs(t *testing.T) {
	e := NewTableQueryExecutor(100)
	params, _ := json.Marshal(TableQueryParams{Table: "events", Where: "1=1"})
	node := types.Node{ID: "tq", Kind: types.NodeKindTableQuery, Params: params}
	inputs := map[string]types.Value{"args": "not-an-array"}

	if _, err := e.Execute(newFakeExecutionContext("proj", inputs).withStore(newFakeProjectStore()), node, inputs); err == nil {
		t.Error("expected error for non-array args input, got nil")
	}
}

func TestTableQueryExecutor_ValidateRequiresTable(t *testing.T) {
	e := NewTableQueryExecutor(100)
	if err := e.Validate(types.Node{ID: "tq", Kind: types.NodeKindTableQuery}); err == nil {
		t.Error("expected error for missing params, got nil")
	}
}
