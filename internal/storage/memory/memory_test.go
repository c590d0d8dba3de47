package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/useradmin-console/internal/model"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, model.StateKeyToken)
	assert.ErrorIs(t, err, model.ErrNotFound)

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, model.StateKeyToken, value))
	value[0] = 'x'

	got, err := s.Get(ctx, model.StateKeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	require.NoError(t, s.Delete(ctx, model.StateKeyToken))
	_, err = s.Get(ctx, model.StateKeyToken)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
