package snapshots

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffer/internal/modules/allocator"
	"coffer/internal/modules/pool"
	"coffer/internal/modules/strategies"
	testhelpers "coffer/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testhelpers.NewTestDB(t, "snapshots")
	t.Cleanup(cleanup)
	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	alloc, err := allocator.New("USDC", allocator.DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p, err := pool.New("USDC", pool.DefaultConfig(), alloc, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.AddStrategy(strategies.NewSim("aave", "USDC", 500)))
	_, err = p.Deposit("alice", 5000)
	require.NoError(t, err)
	return p
}

func TestRepository_SaveAndLatest(t *testing.T) {
	repo := newTestRepository(t)
	p := newTestPool(t)

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest, "empty repository has no latest snapshot")

	snap := Take(p)
	require.NoError(t, repo.Save(snap))

	latest, err = repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(5000), latest.Status.TotalValue)
	assert.Equal(t, "USDC", latest.Status.Asset)
	require.Len(t, latest.Strategies, 1)
	assert.Equal(t, "aave", latest.Strategies[0].Name)
	assert.Equal(t, snap.TakenAt.Unix(), latest.TakenAt.Unix())
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	p := newTestPool(t)

	for i := 0; i < 3; i++ {
		snap := Take(p)
		snap.TakenAt = time.Now().Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Save(snap))
	}

	list, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].TakenAt.After(list[1].TakenAt))
}

func TestRepository_Prune(t *testing.T) {
	repo := newTestRepository(t)
	p := newTestPool(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(Take(p)))
	}

	deleted, err := repo.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
