// Package storage is Mechaway's project-scoped storage manager (PSM).
//
// Each project gets its own SQLite database file, opened lazily on first
// access and kept in a slug-keyed pool by Manager. Tables are a generic
// (id, data) schema, materialized the first time any ProjectStore method
// touches them (a read creates an empty table); TableReader and TableQuery
// read through the same ProjectStore.
//
// # Usage
//
//	mgr := storage.NewManager(cfg.DataDir)
//	ps, err := mgr.ForProject("acme-labs")
//	err = ps.WriteRows(ctx, "orders", rows)
//	rows, err := ps.ReadRows(ctx, "orders", 100, 0, "")
//
// # Isolation
//
// Projects never share a database file or a table namespace; a workflow in
// one project cannot read or write another project's tables.
package storage
