package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInvitationExpired, "invitation 123 expired", map[string]string{"invitation_id": "123"})

	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.NotErrorIs(t, err, ErrInvitationNotFound)
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("respond: %w", Newf(CodeInvitationNotFound, "invitation %q not found", "x"))

	assert.ErrorIs(t, err, ErrInvitationNotFound)
	assert.Equal(t, CodeInvitationNotFound, CodeOf(err))
	assert.True(t, IsDomain(err))
}

func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeEnrollmentDrift, "card missing", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrEnrollmentDrift)
	assert.Equal(t, "ENROLLMENT_DRIFT: card missing: disk full", err.Error())
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(nil))
}
