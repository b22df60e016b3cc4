package middleware

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/types"
)

// TestSizeLimitMiddleware_InputSizeLimit tests input size limiting
func TestSizeLimitMiddleware_InputSizeLimit(t *testing.T) {
	config := SizeLimitConfig{
		MaxInputSize:     100, // 100 bytes
		EnforceInputSize: true,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	// Create mock context with large input
	largeInput := strings.Repeat("x", 200) // 200 bytes
	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{largeInput},
	}

	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return "ok", nil
	}

	_, err := m.Process(ctx, node, handler)
	if err == nil {
		t.Error("expected error for large input, got nil")
	}

	if !strings.Contains(err.Error(), "input size limit exceeded") {
		t.Errorf("expected size limit error, got: %v", err)
	}
}

// TestSizeLimitMiddleware_ResultSizeLimit tests result size limiting
func TestSizeLimitMiddleware_ResultSizeLimit(t *testing.T) {
	config := SizeLimitConfig{
		MaxResultSize:     100, // 100 bytes
		EnforceResultSize: true,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}
	ctx := &mockExecutionContextWithInputs{inputs: []interface{}{}}

	// Handler returns large result
	largeResult := strings.Repeat("x", 200)
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return largeResult, nil
	}

	_, err := m.Process(ctx, node, handler)
	if err == nil {
		t.Error("expected error for large result, got nil")
	}

	if !strings.Contains(err.Error(), "result size limit exceeded") {
		t.Errorf("expected result size limit error, got: %v", err)
	}
}

// TestSizeLimitMiddleware_StringLengthLimit tests string length limiting
func TestSizeLimitMiddleware_StringLengthLimit(t *testing.T) {
	config := SizeLimitConfig{
		MaxInputSize:     1000, // Set high enough to not trigger first
		MaxStringLength:  50,
		EnforceInputSize: true,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	longString := strings.Repeat("x", 100)
	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{longString},
	}

	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return "ok", nil
	}

	_, err := m.Process(ctx, node, handler)
	if err == nil {
		t.Error("expected error for long string, got nil")
	}

	if !strings.Contains(err.Error(), "string length") {
		t.Errorf("expected string length error, got: %v", err)
	}
}

// TestSizeLimitMiddleware_ArrayLengthLimit tests array length limiting
func TestSizeLimitMiddleware_ArrayLengthLimit(t *testing.T) {
	config := SizeLimitConfig{
		MaxInputSize:     10000, // Set high enough to not trigger first
		MaxArrayLength:   10,
		EnforceInputSize: true,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	// Create array with 20 elements
	longArray := make([]interface{}, 20)
	for i := 0; i < 20; i++ {
		longArray[i] = i
	}

	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{longArray},
	}

	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return "ok", nil
	}

	_, err := m.Process(ctx, node, handler)
	if err == nil {
		t.Error("expected error for long array, got nil")
	}

	if !strings.Contains(err.Error(), "array length") {
		t.Errorf("expected array length error, got: %v", err)
	}
}

// TestSizeLimitMiddleware_AllowedInputs tests that allowed inputs pass
func TestSizeLimitMiddleware_AllowedInputs(t *testing.T) {
	m := NewSizeLimitMiddleware()
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	// Small, valid inputs
	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{"hello", 42, true},
	}

	executionCount := 0
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		executionCount++
		return "ok", nil
	}

	result, err := m.Process(ctx, node, handler)
	if err != nil {
		t.Errorf("expected no error for valid inputs, got: %v", err)
	}

	if result != "ok" {
		t.Errorf("expected 'ok', got %v", result)
	}

	if executionCount != 1 {
		t.Errorf("expected handler to be called once, got %d", executionCount)
	}
}

// TestSizeLimitMiddleware_DisabledLimits tests with limits disabled
func TestSizeLimitMiddleware_DisabledLimits(t *testing.T) {
	config := SizeLimitConfig{
		MaxInputSize:      10,
		MaxResultSize:     10,
		EnforceInputSize:  false,
		EnforceResultSize: false,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	// Large input and result
	largeInput := strings.Repeat("x", 100)
	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{largeInput},
	}

	largeResult := strings.Repeat("y", 100)
	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return largeResult, nil
	}

	result, err := m.Process(ctx, node, handler)
	if err != nil {
		t.Errorf("expected no error with disabled limits, got: %v", err)
	}

	if result != largeResult {
		t.Error("result should be returned even if large when limits disabled")
	}
}

// TestSizeLimitMiddleware_Name tests the Name method
func TestSizeLimitMiddleware_Name(t *testing.T) {
	m := NewSizeLimitMiddleware()

	if m.Name() != "SizeLimit" {
		t.Errorf("expected 'SizeLimit', got %s", m.Name())
	}
}

// TestValidateWorkflowSize_NodeCount tests node count validation
func TestValidateWorkflowSize_NodeCount(t *testing.T) {
	config := SizeLimitConfig{
		MaxNodeCount: 5,
	}

	// Create 10 nodes
	nodes := make([]types.Node, 10)
	for i := 0; i < 10; i++ {
		nodes[i] = types.Node{ID: string(rune('a' + i)), Kind: types.NodeKindScript}
	}

	err := ValidateWorkflowSize(nodes, []types.Edge{}, config)
	if err == nil {
		t.Error("expected error for too many nodes, got nil")
	}

	if !strings.Contains(err.Error(), "nodes") {
		t.Errorf("expected node count error, got: %v", err)
	}
}

// TestValidateWorkflowSize_EdgeCount tests edge count validation
func TestValidateWorkflowSize_EdgeCount(t *testing.T) {
	config := SizeLimitConfig{
		MaxEdgeCount: 5,
	}

	nodes := []types.Node{
		{ID: "1", Kind: types.NodeKindScript},
		{ID: "2", Kind: types.NodeKindScript},
	}

	// Create 10 edges
	edges := make([]types.Edge, 10)
	for i := 0; i < 10; i++ {
		edges[i] = types.Edge{FromNodeID: "1", ToNodeID: "2"}
	}

	err := ValidateWorkflowSize(nodes, edges, config)
	if err == nil {
		t.Error("expected error for too many edges, got nil")
	}

	if !strings.Contains(err.Error(), "edges") {
		t.Errorf("expected edge count error, got: %v", err)
	}
}

// TestValidateWorkflowSize_ValidWorkflow tests valid workflow passes
func TestValidateWorkflowSize_ValidWorkflow(t *testing.T) {
	config := DefaultSizeLimitConfig()

	nodes := []types.Node{
		{ID: "1", Kind: types.NodeKindScript},
		{ID: "2", Kind: types.NodeKindScript},
		{ID: "3", Kind: types.NodeKindScript},
	}

	edges := []types.Edge{
		{FromNodeID: "1", ToNodeID: "2"},
		{FromNodeID: "2", ToNodeID: "3"},
	}

	err := ValidateWorkflowSize(nodes, edges, config)
	if err != nil {
		t.Errorf("expected no error for valid workflow, got: %v", err)
	}
}

// TestSizeLimitMiddleware_NestedStructures tests nested data validation
func TestSizeLimitMiddleware_NestedStructures(t *testing.T) {
	config := SizeLimitConfig{
		MaxInputSize:     10000, // Set high enough to not trigger first
		MaxStringLength:  20,
		EnforceInputSize: true,
	}

	m := NewSizeLimitMiddlewareWithConfig(config)
	node := types.Node{ID: "test", Kind: types.NodeKindScript}

	// Nested structure with long string
	nestedData := map[string]interface{}{
		"outer": map[string]interface{}{
			"inner": strings.Repeat("x", 50), // Exceeds limit
		},
	}

	ctx := &mockExecutionContextWithInputs{
		inputs: []interface{}{nestedData},
	}

	handler := func(ctx executor.ExecutionContext, node types.Node) (interface{}, error) {
		return "ok", nil
	}

	_, err := m.Process(ctx, node, handler)
	if err == nil {
		t.Error("expected error for nested string exceeding limit, got nil")
	}
}

// mockExecutionContextWithInputs implements executor.ExecutionContext with
// a fixed set of resolved input values, keyed positionally (in0, in1, ...)
// since these tests only care about the values that flow through size
// validation, not real pin names.
type mockExecutionContextWithInputs struct {
	inputs []interface{}
}

func (m *mockExecutionContextWithInputs) Context() context.Context {
	return context.Background()
}

func (m *mockExecutionContextWithInputs) ResolveInputs(node types.Node) (map[string]types.Value, error) {
	resolved := make(map[string]types.Value, len(m.inputs))
	for i, v := range m.inputs {
		resolved[fmt.Sprintf("in%d", i)] = v
	}
	return resolved, nil
}

func (m *mockExecutionContextWithInputs) GetSecret(name string) (string, error) {
	return "", nil
}

func (m *mockExecutionContextWithInputs) ProjectDB() executor.ProjectStore {
	return nil
}

func (m *mockExecutionContextWithInputs) Config() *config.Config {
	cfg := config.Default()
	return &cfg
}

func (m *mockExecutionContextWithInputs) Logger() *logging.Logger {
	return logging.New(logging.DefaultConfig())
}

func (m *mockExecutionContextWithInputs) SetNodeOutput(nodeID string, output types.ValueArray) {
}

func (m *mockExecutionContextWithInputs) NodeOutput(nodeID string) (types.ValueArray, bool) {
	return nil, false
}
