package ident

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
)

// CustomerID identifies a customer.
type CustomerID string

// BusinessID identifies a business.
type BusinessID string

// ProgramID identifies a loyalty program.
type ProgramID string

// InvitationID identifies an invitation. Always a canonical UUID.
type InvitationID string

// maxSafeFloatInt is the largest integer a float64 represents exactly.
const maxSafeFloatInt = 1 << 53

// ParseCustomerID canonicalizes a raw customer identifier.
func ParseCustomerID(raw any) (CustomerID, error) {
	s, err := parseEntity("customer", raw)
	return CustomerID(s), err
}

// ParseBusinessID canonicalizes a raw business identifier.
func ParseBusinessID(raw any) (BusinessID, error) {
	s, err := parseEntity("business", raw)
	return BusinessID(s), err
}

// ParseProgramID canonicalizes a raw program identifier.
func ParseProgramID(raw any) (ProgramID, error) {
	s, err := parseEntity("program", raw)
	return ProgramID(s), err
}

// ParseInvitationID canonicalizes a raw invitation identifier.
// Only UUIDs are accepted; numeric forms are rejected.
func ParseInvitationID(raw any) (InvitationID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return "", invalid("invitation", raw)
		}
		return InvitationID(v.String()), nil
	case string:
		s := strings.TrimSpace(norm.NFKC.String(v))
		if u, ok := parseUUID(s); ok {
			return InvitationID(u), nil
		}
	}
	return "", invalid("invitation", raw)
}

func parseEntity(kind string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", invalid(kind, raw)
	case string:
		if s, ok := canonicalString(v); ok {
			return s, nil
		}
	case json.Number:
		if s, ok := canonicalString(v.String()); ok {
			return s, nil
		}
	case uuid.UUID:
		if v != uuid.Nil {
			return v.String(), nil
		}
	case int:
		return positiveInt(kind, int64(v), raw)
	case int8:
		return positiveInt(kind, int64(v), raw)
	case int16:
		return positiveInt(kind, int64(v), raw)
	case int32:
		return positiveInt(kind, int64(v), raw)
	case int64:
		return positiveInt(kind, v, raw)
	case uint:
		return positiveUint(kind, uint64(v), raw)
	case uint8:
		return positiveUint(kind, uint64(v), raw)
	case uint16:
		return positiveUint(kind, uint64(v), raw)
	case uint32:
		return positiveUint(kind, uint64(v), raw)
	case uint64:
		return positiveUint(kind, v, raw)
	case float32:
		return integralFloat(kind, float64(v), raw)
	case float64:
		return integralFloat(kind, v, raw)
	}
	return "", invalid(kind, raw)
}

// canonicalString folds compatibility characters, then accepts a positive
// decimal or a UUID.
func canonicalString(raw string) (string, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return "", false
	}
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	}
	return parseUUID(s)
}

func parseUUID(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return "", false
	}
	return u.String(), true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func positiveInt(kind string, n int64, raw any) (string, error) {
	if n <= 0 {
		return "", invalid(kind, raw)
	}
	return strconv.FormatInt(n, 10), nil
}

func positiveUint(kind string, n uint64, raw any) (string, error) {
	if n == 0 || n > math.MaxInt64 {
		return "", invalid(kind, raw)
	}
	return strconv.FormatUint(n, 10), nil
}

func integralFloat(kind string, f float64, raw any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 || f > maxSafeFloatInt {
		return "", invalid(kind, raw)
	}
	return strconv.FormatInt(int64(f), 10), nil
}

func invalid(kind string, raw any) error {
	return errs.WithMetadata(
		errs.CodeInvalidIdentifier,
		fmt.Sprintf("invalid %s identifier %s", kind, describe(raw)),
		map[string]string{"kind": kind},
	)
}

func describe(raw any) string {
	if raw == nil {
		return "<nil>"
	}
	if s, ok := raw.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v (%T)", raw, raw)
}
