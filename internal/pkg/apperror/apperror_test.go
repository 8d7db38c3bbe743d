package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_MatchesKindAndSentinel(t *testing.T) {
	errThing := New(ErrNotFound, "thing not found")
	wrapped := fmt.Errorf("get thing: %w", errThing)

	assert.ErrorIs(t, wrapped, errThing)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, ErrNotFound, KindOf(wrapped))
	assert.Equal(t, "thing not found", Message(wrapped))
}

func TestPersistence_WrapsRawErrors(t *testing.T) {
	raw := errors.New("connection reset")

	err := Persistence("write option", raw)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, raw)
	assert.Equal(t, "write option: connection reset", err.Error())

	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "write option", pe.Op)
}

func TestPersistence_KeepsExistingKind(t *testing.T) {
	errTaken := New(ErrConflict, "taken")

	err := Persistence("insert", errTaken)

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Nil(t, Persistence("noop", nil))
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
