// Package persistence stores tag reads in a local SQLite database and
// publishes the store to other modules through the capability registry.
//
// The schema is embedded and versioned; opening a database created by an
// incompatible build fails with ErrSchemaMismatch instead of migrating it.
package persistence
