// Package registry stores and hot-reloads workflow definitions. Each
// project's workflows persist to its project database (pkg/storage) and
// are mirrored in an atomically-swapped in-memory snapshot, so every
// trigger (HTTP, cron) reads a workflow without taking a lock or touching
// SQLite on the hot path — a write installs a new snapshot, readers in
// flight keep using the old one until they next look it up.
package registry
