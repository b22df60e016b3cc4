package executor

import (
	"encoding/json"
	"testing"

	"github.com/insanalamin/mechaway/pkg/types"
)

func TestTableReaderExecutor_ReturnsPage(t *testing.T) {
	store := newFakeProjectStore()
	store.rows["events"] = []map[string]types.Value{
		{"id": float64(1)}, {"id": float64(2)}, {"id": float64(3)},
	}

	e := NewTableReaderExecutor(10)
	params, _ := json.Marshal(TableReaderParams{Table: "events", Limit: 2})
	node := types.Node{ID: "tr", Kind: types.NodeKindTableReader, Params: params}

	out, err := e.Execute(newFakeExecutionContext("proj", nil).withStore(store), node, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
}

func TestTableReaderExecutor_OffsetFromInput(t *testing.T) {
	store := newFakeProjectStore()
	store.rows["events"] = []map[string]types.Value{
		{"id": float64(1)}, {"id": float64(2)}, {"id": float64(3)},
	}

	e := NewTableReaderExecutor(10)
	params, _ := json.Marshal(TableReaderParams{Table: "events", Limit: 10})
	node := types.Node{ID: "tr", Kind: types.NodeKindTableReader, Params: params}
	inputs := map[string]types.Value{"offset": float64(1)}

	out, err := e.Execute(newFakeExecutionContext("proj", inputs).withStore(store), node, inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows after offset, got %d", len(out))
	}
}

func TestTableReaderExecutor_LimitClampedToMax(t *testing.T) {
	store := newFakeProjectStore()
	rows := make([]map[string]types.Value, 20)
	for i := range rows {
		rows[i] = map[string]types.Value{"id": float64(i)}
	}
	store.rows["events"] = rows

	e := NewTableReaderExecutor(5)
	params, _ := json.Marshal(TableReaderParams{Table: "events", Limit: 1000})
	node := types.Node{ID: "tr", Kind: types.NodeKindTableReader, Params: params}

	out, err := e.Execute(newFakeExecutionContext("proj", nil).withStore(store), node, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 {
		t.Errorf("expected limit clamped to maxLimit=5, got %d", len(out))
	}
}

func TestTableReaderExecutor_LimitHardCappedAt1000(t *testing.T) {
	store := newFakeProjectStore()
	rows := make([]map[string]types.Value, 1500)
	for i := range rows {
		rows[i] = map[string]types.Value{"id": float64(i)}
	}
	store.rows["events"] = rows

	// maxLimit 0 means "no executor-configured ceiling"; the request still
	// cannot exceed the hard [1, 1000] bound.
	e := NewTableReaderExecutor(0)
	params, _ := json.Marshal(TableReaderParams{Table: "events", Limit: 5000})
	node := types.Node{ID: "tr", Kind: types.NodeKindTableReader, Params: params}

	out, err := e.Execute(newFakeExecutionContext("proj", nil).withStore(store), node, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != hardMaxLimit {
		t.Errorf("expected limit hard-capped at %d, got %d", hardMaxLimit, len(out))
	}
}

func TestTableReaderExecutor_ForwardsOrderBy(t *testing.T) {
	store := newFakeProjectStore()
	e := NewTableReaderExecutor(10)
	params, _ := json.Marshal(TableReaderParams{Table: "events", Limit: 10, OrderBy: "score desc"})
	node := types.Node{ID: "tr", Kind: types.NodeKindTableReader, Params: params}

	if _, err := e.Execute(newFakeExecutionContext("proj", nil).withStore(store), node, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.orderBy != "score desc" {
		t.Errorf("expected order_by forwarded, got %q", store.orderBy)
	}
}

func TestTableReaderExecutor_ValidateRequiresTable(t *testing.T) {
	e := NewTableReaderExecutor(10)
	if err := e.Validate(types.Node{ID: "tr", Kind: types.NodeKindTableReader}); err == nil {
		t.Error("expected error for missing params, got nil")
	}
}
