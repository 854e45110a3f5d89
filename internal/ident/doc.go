// Package ident turns raw caller-supplied identifiers into canonical typed
// values.
//
// Callers hand identifiers in whatever shape their transport produced: JSON
// numbers decoded as float64, numeric strings with leading zeros, upper-case
// UUIDs, full-width digits typed on a phone keyboard. Every one of these is
// parsed exactly once at the boundary; deeper layers only ever see the typed
// values below, so an integer id can never be compared against its text form.
//
// Canonical forms:
//   - numeric ids: base-10, no sign, no leading zeros, greater than zero
//   - UUIDs: lowercase hyphenated (RFC 4122 text form)
//
// All functions are pure.
package ident
