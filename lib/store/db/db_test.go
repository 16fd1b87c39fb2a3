package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/store/memory"
)

func TestNew(t *testing.T) {
	dh, err := New(MEMORY, "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Memory{}, dh)
	assert.NoError(t, Close(MEMORY, dh))

	_, err = New("mysql", "")
	assert.True(t, errors.Is(err, ErrUnknownType))
}
