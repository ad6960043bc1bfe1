package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	older := paygwPack(t, "2023.1", "2023-07-01")
	to := day(t, "2024-06-30")
	older.EffectiveTo = &to
	newer := paygwPack(t, "2024.1", "2024-07-01")

	repo, err := NewRepository([]*Pack{newer, older}) // out of order on purpose
	require.NoError(t, err)
	return repo
}

func TestResolve_ExactVersion(t *testing.T) {
	repo := newTestRepository(t)

	p, err := repo.Resolve("2023.1", day(t, "2023-10-01"))
	require.NoError(t, err)
	assert.Equal(t, "paygw-2023.1", p.ID)
}

func TestResolve_UnknownVersion(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Resolve("1999.1", day(t, "2023-10-01"))
	require.Error(t, err)
	assert.True(t, IsUnknownVersion(err))

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "1999.1", re.Selector, "error must name the selector for diagnosis")
}

func TestResolve_PeriodNotCovered(t *testing.T) {
	repo := newTestRepository(t)

	// Before the window.
	_, err := repo.Resolve("2023.1", day(t, "2023-06-30"))
	require.Error(t, err)
	assert.True(t, IsPeriodNotCovered(err))

	// After the closed window.
	_, err = repo.Resolve("2023.1", day(t, "2024-07-01"))
	require.Error(t, err)
	assert.True(t, IsPeriodNotCovered(err))

	// Boundary days are covered (inclusive window).
	_, err = repo.Resolve("2023.1", day(t, "2023-07-01"))
	assert.NoError(t, err)
	_, err = repo.Resolve("2023.1", day(t, "2024-06-30"))
	assert.NoError(t, err)
}

func TestResolve_LatestSelector(t *testing.T) {
	repo := newTestRepository(t)

	p, err := repo.Resolve(SelectorLatest, day(t, "2024-08-15"))
	require.NoError(t, err)
	assert.Equal(t, "2024.1", p.Version)
}

func TestResolve_LatestRejectsBackdating(t *testing.T) {
	repo := newTestRepository(t)

	// Any date before the newest pack's effectiveness must refuse
	// "latest" - even dates covered by an older pack.
	_, err := repo.Resolve(SelectorLatest, day(t, "2024-06-30"))
	require.Error(t, err)
	assert.True(t, IsBackdatingRejected(err))
	assert.False(t, IsPeriodNotCovered(err), "backdating is its own code, not a coverage miss")
}

func TestResolve_Deterministic(t *testing.T) {
	repo := newTestRepository(t)
	asOf := day(t, "2023-10-01")

	first, err := repo.Resolve("2023.1", asOf)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := repo.Resolve("2023.1", asOf)
		require.NoError(t, err)
		assert.Same(t, first, got, "repeated resolution must return the identical pack")
	}
}

func TestNewRepository_RejectsDuplicateVersion(t *testing.T) {
	a := paygwPack(t, "2023.1", "2023-07-01")
	b := paygwPack(t, "2023.1", "2024-07-01")
	b.ID = "paygw-dup"

	_, err := NewRepository([]*Pack{a, b})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestNewRepository_RejectsInvalidPack(t *testing.T) {
	p := paygwPack(t, "2023.1", "2023-07-01")
	p.Brackets[1].Lower = dec(t, "1500") // gap after [0, 1000)

	_, err := NewRepository([]*Pack{p})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLatest_EmptyRepository(t *testing.T) {
	repo, err := NewRepository(nil)
	require.NoError(t, err)
	assert.Nil(t, repo.Latest())

	_, err = repo.Resolve(SelectorLatest, day(t, "2024-01-01"))
	require.Error(t, err)
	assert.True(t, IsUnknownVersion(err))
}

func TestPacks_EffectiveOrder(t *testing.T) {
	repo := newTestRepository(t)
	packs := repo.Packs()
	require.Len(t, packs, 2)
	assert.Equal(t, "2023.1", packs[0].Version)
	assert.Equal(t, "2024.1", packs[1].Version)
}
