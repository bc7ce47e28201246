package settings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "coffer/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testhelpers.NewTestDB(t, "config")
	t.Cleanup(cleanup)
	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestRepository_GetSet(t *testing.T) {
	repo := newTestRepository(t)

	value, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	desc := "fee rate in basis points"
	require.NoError(t, repo.Set(KeyPerformanceFeeBP, "1000", &desc))
	require.NoError(t, repo.Set(KeyPerformanceFeeBP, "1500", nil)) // upsert

	value, err = repo.Get(KeyPerformanceFeeBP)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "1500", *value)
}

func TestRepository_TypedGetters(t *testing.T) {
	repo := newTestRepository(t)

	v, err := repo.GetInt64(KeyMinContribution, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v, "missing key returns default")

	require.NoError(t, repo.SetInt64(KeyMinContribution, 250))
	v, err = repo.GetInt64(KeyMinContribution, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(250), v)

	require.NoError(t, repo.Set("garbage", "not-a-number", nil))
	v, err = repo.GetInt64("garbage", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v, "unparseable value falls back to default")

	require.NoError(t, repo.SetBool("flag", true))
	b, err := repo.GetBool("flag", false)
	require.NoError(t, err)
	assert.True(t, b)

	s, err := repo.GetString(KeyTreasuryAccount, "")
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestRepository_GetAllAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Set("a", "1", nil))
	require.NoError(t, repo.Set("b", "2", nil))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	require.NoError(t, repo.Delete("a"))
	require.NoError(t, repo.Delete("a")) // idempotent

	all, err = repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
