// Package middleware implements the Chain of Responsibility pattern for
// node execution: cross-cutting concerns like logging, metrics, retry,
// timeout, rate limiting, and size limiting wrap a node's dispatch to its
// executor without the executor itself knowing they exist.
//
// # Middleware Interface
//
//	type Handler func(ctx executor.ExecutionContext, node types.Node) (interface{}, error)
//
//	type Middleware interface {
//	    Process(ctx executor.ExecutionContext, node types.Node, next Handler) (interface{}, error)
//	    Name() string
//	}
//
// # Basic Usage
//
//	chain := middleware.NewChain().
//	    Use(middleware.NewLoggingMiddleware(logger)).
//	    Use(middleware.NewMetricsMiddleware(collector)).
//	    Use(middleware.NewRateLimitMiddleware()).
//	    Use(middleware.NewSizeLimitMiddleware())
//
//	result, err := chain.Execute(execCtx, node, func(c executor.ExecutionContext, n types.Node) (interface{}, error) {
//	    return executorRegistry.Execute(c, n, inputs)
//	})
//
// # Built-in Middleware
//
//   - LoggingMiddleware — logs node start/end and duration
//   - MetricsMiddleware — records execution counts/durations through a MetricsCollector
//   - RetryMiddleware / ConditionalRetryMiddleware — retries a failed node
//   - TimeoutMiddleware / TimeoutMiddlewareWithContext — bounds node execution time
//   - RateLimitMiddleware — token-bucket limits node executions per key
//   - SizeLimitMiddleware — rejects oversized node inputs
//   - ValidationMiddleware / InputValidationMiddleware — validates a node or its inputs
//
// # Ordering
//
// Middleware run in the order added; the chain wraps each in turn so the
// first middleware added is the outermost:
//
//	Use(A).Use(B).Use(C) → A.Process → B.Process → C.Process → handler
//
// # Thread Safety
//
// Middleware implementations must be stateless or internally synchronized:
// the same instance is shared across concurrent activations.
package middleware
