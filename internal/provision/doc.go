// Package provision decides and applies the enrollment and reward-card writes
// that make a customer an active member of a program.
//
// Provisioning is split in two:
//
//   - Plan is pure: given the current enrollment and card (either may be
//     absent) it returns what must happen to each.
//   - Provisioner.Apply reads the current rows inside the caller's
//     transaction, plans, and executes only the steps that change something,
//     each as an atomic INSERT ... ON CONFLICT upsert.
//
// The approval engine and the reconciliation sweep both call Apply, so
// creating a card and repairing a card are the same code path.
//
// Points on reactivation are preserved: an enrollment that comes back from
// INACTIVE or CANCELLED keeps its accumulated points, and its card is synced
// to that balance.
package provision
