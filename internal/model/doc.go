// Package model defines the records, status enums and error taxonomy shared by
// the invitation, approval, provisioning and reconciliation packages.
//
// The four persisted record types are:
//   - Invitation: a business proposal for a customer to join a program
//   - Notification: the customer-facing prompt paired 1:1 with an Invitation
//   - Enrollment: the accounting record of a customer's program membership
//   - RewardCard: the display mirror of an Enrollment's status and points
//
// Enrollment and RewardCard are both keyed by (CustomerID, ProgramID).
// Identifiers are typed values produced by internal/ident; nothing in this
// package parses raw input.
package model
