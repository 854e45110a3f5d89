// Package store provides durable relational storage for invitations,
// notifications, enrollments and reward cards.
//
// The store backs the approval engine with four guarantees:
//
// # Critical Patterns
//
// CP-1: Storage-Level Uniqueness
//   - enrollments PRIMARY KEY(customer_id, program_id)
//   - reward_cards UNIQUE(customer_id, program_id)
//   - invitations partial UNIQUE(customer_id, program_id) WHERE status = 'PENDING'
//
// CP-2: Compare-And-Set Transitions
//   - Invitation status changes are UPDATE ... WHERE status = <expected>
//   - RowsAffected() == 0 means another writer got there first
//
// CP-3: Atomic Upserts
//   - Enrollment and card writes are INSERT ... ON CONFLICT DO UPDATE ... WHERE <needs change>
//   - No exists-check followed by insert; an already consistent row costs zero writes
//
// CP-4: Explicit Transactions
//   - Multi-record changes run inside WithTx and receive the *Tx as a parameter
//   - Store and Tx expose the same query methods; nothing reads an ambient connection
//
// # Database Configuration
//
// SQLite (default, github.com/mattn/go-sqlite3):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: transactions are serialized
//
// PostgreSQL (github.com/lib/pq): queries are written with ? placeholders and
// rebound to $n. Concurrent compare-and-set updates on the same invitation
// row block on its row lock and re-evaluate the status predicate.
//
// Timestamps are stored as Unix milliseconds (BIGINT).
package store
