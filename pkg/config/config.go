// Package config centralizes tunables for every Mechaway component: execution
// limits, HTTP/SSRF policy for the HTTPClient node, script sandbox limits,
// table-node limits, storage location and server bind address.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine-wide configuration. Components receive a Config value
// (not a pointer); the engine keeps its own copy, which executors reach
// through ExecutionContext.Config() as a pointer to that copy.
type Config struct {
	// Execution limits
	MaxExecutionTime     time.Duration // per-activation deadline (ExecutionContext.deadline)
	MaxNodeExecutionTime time.Duration // soft ceiling passed to per-node contexts

	// HTTP node configuration
	HTTPTimeout      time.Duration
	MaxHTTPRedirects int
	MaxResponseSize  int64
	MaxHTTPCalls     int // per-activation HTTP call budget setting; the HTTPClient executor does not read or enforce it

	// Zero trust network policy (HTTPClient node) - deny by default
	AllowHTTP          bool
	AllowedDomains     []string
	AllowPrivateIPs    bool
	AllowLocalhost     bool
	AllowLinkLocal     bool
	AllowCloudMetadata bool

	// Script sandbox
	ScriptMemoryLimitBytes int64
	ScriptDefaultDeadline  time.Duration

	// Table nodes
	MaxTableLimit int

	// Resource limits
	MaxNodes          int
	MaxEdges          int
	MaxNodeExecutions int // runtime protection: total node activations per execution, 0 = unlimited

	// Storage
	DataDir string

	// Server bind address
	Host string
	Port int
}

// Default returns secure, production-ready defaults.
func Default() Config {
	return Config{
		MaxExecutionTime:     30 * time.Second,
		MaxNodeExecutionTime: 10 * time.Second,

		HTTPTimeout:      10 * time.Second,
		MaxHTTPRedirects: 5,
		MaxResponseSize:  4 * 1024 * 1024,
		MaxHTTPCalls:     50,

		AllowHTTP:          false,
		AllowedDomains:     nil,
		AllowPrivateIPs:    false,
		AllowLocalhost:     false,
		AllowLinkLocal:     false,
		AllowCloudMetadata: false,

		ScriptMemoryLimitBytes: 16 * 1024 * 1024,
		ScriptDefaultDeadline:  1 * time.Second,

		MaxTableLimit: 1000,

		MaxNodes:          1000,
		MaxEdges:          5000,
		MaxNodeExecutions: 10000,

		DataDir: "./data",

		Host: "0.0.0.0",
		Port: 8080,
	}
}

// Development relaxes network policy for local workflow authoring.
func Development() Config {
	c := Default()
	c.AllowHTTP = true
	c.AllowPrivateIPs = true
	c.AllowLocalhost = true
	return c
}

// FromEnv layers MECHAWAY_* environment variables over Default().
func FromEnv() Config {
	c := Default()
	if v := os.Getenv("MECHAWAY_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MECHAWAY_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("MECHAWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("MECHAWAY_ALLOW_HTTP"); v != "" {
		c.AllowHTTP = v == "true" || v == "1"
	}
	return c
}
