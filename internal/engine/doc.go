// Package engine implements the invitation approval state machine.
//
// The engine turns a customer's decision on an invitation into the committed
// combination of invitation status, enrollment, reward card and notification
// state.
//
// STATE MACHINE:
//
//	PENDING --approve--> APPROVED
//	PENDING --decline--> DECLINED
//	PENDING --deadline-> EXPIRED
//
// APPROVED, DECLINED and EXPIRED are terminal.
//
// ARCHITECTURE:
//
// One Transaction Per Response:
// Respond loads the invitation, flips its status with a compare-and-set,
// provisions the enrollment and card (approve only), and closes the
// notification, all inside a single store transaction. Either every write
// commits or none does.
//
// Compare-And-Set As The Only Lock:
// The UPDATE ... WHERE status = 'PENDING' on the invitation row decides which
// of several concurrent responses performs the side effects. Losers re-read
// the invitation and return the winner's result. There are no in-process
// mutexes, so the guarantee holds across processes sharing a database.
//
// Replays Are Reads:
// Responding to an already resolved invitation never writes. It reads the
// enrollment and card and returns the same result the first response did.
//
// CRITICAL PATTERNS:
//
// CP-1: Explicit Transactions
// The *store.Tx is passed down to provisioning as a parameter.
//
// CP-2: Decline Purity
// The decline branch never touches enrollments or cards.
package engine
