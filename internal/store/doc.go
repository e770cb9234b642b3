// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The package is split into narrow interfaces, one per concern:
//
//   - UserStore: accounts with bcrypt password hashes
//   - AgentStore: assistant personas owned by a user
//   - ChatStore: conversations and their append-only messages
//   - IntegrationStore: per-provider connection records and OAuth tokens
//   - LogStore: interaction analytics written after each chat turn
//
// Store composes all of them. SQLiteStore implements Store against
// modernc.org/sqlite; MockStore is an in-memory implementation for tests.
//
// # Ordering
//
// Messages carry an AUTOINCREMENT sequence column so that two messages
// created within the same clock tick still list in insertion order.
// InsertMessage updates the parent conversation's updated_at in the same
// transaction, so ListConversations (ordered by updated_at) always reflects
// the latest message.
//
// # Metadata
//
// Message metadata is the closed variant Meta: no metadata, a fallback
// marker carrying the failure reason, or the agent type that produced the
// reply. It is stored as two nullable columns.
//
// # Errors
//
// ErrNotFound is returned (possibly wrapped) for missing rows, including
// zero-row updates and deletes and foreign-key failures on insert.
// ErrDuplicate is returned for unique-key collisions.
package store
