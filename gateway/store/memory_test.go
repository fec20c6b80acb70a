package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/responses"
)

func TestMemoryStoreSaveGetDelete(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	resp := &responses.Response{ID: "resp_1", Status: "completed"}
	items := []responses.InputItem{{Type: "message", Role: "user"}}
	require.NoError(t, s.Save(ctx, resp, items))

	got, err := s.Get(ctx, "resp_1")
	require.NoError(t, err)
	require.Equal(t, "completed", got.Status)

	gotItems, err := s.ListInputItems(ctx, "resp_1")
	require.NoError(t, err)
	require.Len(t, gotItems, 1)

	require.NoError(t, s.Delete(ctx, "resp_1"))
	_, err = s.Get(ctx, "resp_1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDeleteMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	err := s.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
