// Package observer provides an event-driven observer pattern for workflow
// execution monitoring.
//
// # Overview
//
// The observer package implements the observer pattern to enable monitoring,
// logging, and reacting to workflow execution events. Observers can track
// workflow lifecycle and node execution without coupling to the engine
// implementation.
//
// # Observer Interface
//
// Every observer implements a single method:
//
//	type Observer interface {
//	    OnEvent(ctx context.Context, event Event)
//	}
//
// Event carries everything an observer needs to know about a workflow or
// node transition: its Type (EventWorkflowStart, EventNodeSuccess, ...), the
// execution/workflow/node IDs, the node's Kind, timing, and, for terminal
// events, the Result or Error.
//
// # Event Types
//
//   - EventWorkflowStart / EventWorkflowEnd — workflow lifecycle boundaries
//   - EventNodeStart / EventNodeEnd — node lifecycle boundaries
//   - EventNodeSuccess / EventNodeFailure — node outcome
//
// # Basic Usage
//
//	import "github.com/insanalamin/mechaway/pkg/observer"
//
//	mgr := observer.NewManager()
//	mgr.Register(observer.NewConsoleObserver())
//
//	mgr.Notify(ctx, observer.Event{
//	    Type:        observer.EventWorkflowStart,
//	    Status:      observer.StatusStarted,
//	    ExecutionID: executionID,
//	    WorkflowID:  workflow.ID,
//	})
//
// # Observer Composition
//
// Manager fans a single Notify call out to every registered observer, each
// in its own goroutine, recovering any panic so one misbehaving observer can
// never take down workflow execution or starve its peers.
//
// # Built-in Observers
//
//   - NoOpObserver — ignores all events, the default when none is configured
//   - ConsoleObserver — logs events through a Logger (NewDefaultLogger by
//     default, or any caller-supplied implementation)
//
// # Thread Safety
//
// Manager.Notify dispatches to observers concurrently; Observer
// implementations must be safe for concurrent use.
package observer
