// Package repository defines the data access interfaces for the node graph.
//
// Executor is the query collaborator: it runs parameterized SQL and returns
// rows or an error. SchemaManager and NodeRepository hold all domain logic
// on top of it. The sqlite subpackage is the only implementation.
//
// # SQLite Implementation
//
// The sqlite implementation keeps one logical connection with foreign keys
// on and WAL journaling. It handles:
//
// - idempotent schema creation in dependency order
// - JSON-in-TEXT columns for list and structured node fields
// - connection replacement and symmetric cleanup on delete
// - one transaction per composite operation
// - classification of driver errors into the apperr taxonomy
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
