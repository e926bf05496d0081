package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stafflink/dirsync/internal/store"
)

func TestLockStore_Acquire(t *testing.T) {
	t.Run("second holder is rejected", func(t *testing.T) {
		st := NewLockStore()
		ctx := context.Background()
		tenantID := uuid.Must(uuid.NewV7())

		require.NoError(t, st.Acquire(ctx, tenantID, "holder-a", time.Minute))

		err := st.Acquire(ctx, tenantID, "holder-b", time.Minute)
		require.ErrorIs(t, err, store.ErrSyncInProgress)
	})

	t.Run("same holder refreshes expiry", func(t *testing.T) {
		st := NewLockStore()
		ctx := context.Background()
		tenantID := uuid.Must(uuid.NewV7())

		require.NoError(t, st.Acquire(ctx, tenantID, "holder-a", time.Minute))
		require.NoError(t, st.Acquire(ctx, tenantID, "holder-a", time.Minute))
	})

	t.Run("expired lock is claimable", func(t *testing.T) {
		st := NewLockStore()
		ctx := context.Background()
		tenantID := uuid.Must(uuid.NewV7())

		// A crashed process left a lock behind with a tiny TTL.
		require.NoError(t, st.Acquire(ctx, tenantID, "crashed", time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		require.NoError(t, st.Acquire(ctx, tenantID, "holder-b", time.Minute))
	})

	t.Run("locks are per tenant", func(t *testing.T) {
		st := NewLockStore()
		ctx := context.Background()

		require.NoError(t, st.Acquire(ctx, uuid.Must(uuid.NewV7()), "holder-a", time.Minute))
		require.NoError(t, st.Acquire(ctx, uuid.Must(uuid.NewV7()), "holder-a", time.Minute))
	})
}

func TestLockStore_Release(t *testing.T) {
	st := NewLockStore()
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	require.NoError(t, st.Acquire(ctx, tenantID, "holder-a", time.Minute))

	// Releasing someone else's lock is a no-op.
	require.NoError(t, st.Release(ctx, tenantID, "holder-b"))
	held, err := st.Held(ctx, tenantID)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, st.Release(ctx, tenantID, "holder-a"))
	held, err = st.Held(ctx, tenantID)
	require.NoError(t, err)
	require.False(t, held)
}

func TestLockStore_Held(t *testing.T) {
	st := NewLockStore()
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	held, err := st.Held(ctx, tenantID)
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, st.Acquire(ctx, tenantID, "holder-a", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	// An expired lock no longer counts as held.
	held, err = st.Held(ctx, tenantID)
	require.NoError(t, err)
	require.False(t, held)
}
