package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "history.db"), MaxEntries: maxEntries})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRecordAndGet(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &View{
		RuleKey: "java:S1481", RuleName: "Unused local variables should be removed",
		Language: "java", Severity: "MINOR", Profiles: 3, Overridden: 1,
	}))
	require.NoError(t, store.Record(ctx, &View{
		RuleKey: "java:S1481", RuleName: "Unused local variables should be removed",
		Language: "java", Severity: "MAJOR", Profiles: 4,
	}))

	v, err := store.Get(ctx, "java:S1481")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.ViewCount)
	assert.Equal(t, "MAJOR", v.Severity)
	assert.Equal(t, 4, v.Profiles)
	assert.Equal(t, 0, v.Overridden)
	assert.False(t, v.ViewedAt.IsZero())

	missing, err := store.Get(ctx, "java:S0")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, store.Record(ctx, &View{RuleName: "no key"}))
}

func TestRecentOrder(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()
	base := time.Now()

	for i, key := range []string{"go:S1", "go:S2", "go:S3"} {
		require.NoError(t, store.Record(ctx, &View{RuleKey: key, RuleName: key, ViewedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "go:S3", recent[0].RuleKey)
	assert.Equal(t, "go:S2", recent[1].RuleKey)
}

func TestSearch(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	views := []*View{
		{RuleKey: "java:S2077", RuleName: "Formatting SQL queries is security-sensitive", Language: "java", Overridden: 2},
		{RuleKey: "py:S3649", RuleName: "Database queries should not be vulnerable to injection attacks", Language: "py"},
		{RuleKey: "go:S100", RuleName: "Function names should comply with a naming convention", Language: "go"},
	}
	for _, v := range views {
		require.NoError(t, store.Record(ctx, v))
	}

	got, err := store.Search(ctx, SearchQuery{Text: "queri"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.Search(ctx, SearchQuery{Text: "go:S100"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "go:S100", got[0].RuleKey)

	got, err = store.Search(ctx, SearchQuery{Language: "py"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = store.Search(ctx, SearchQuery{OnlyOverridden: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "java:S2077", got[0].RuleKey)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()
	base := time.Now()

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Record(ctx, &View{RuleKey: key, RuleName: key, ViewedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rules)

	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStatsDeleteClear(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &View{RuleKey: "go:S1", RuleName: "one", Language: "go"}))
	require.NoError(t, store.Record(ctx, &View{RuleKey: "go:S1", RuleName: "one", Language: "go"}))
	require.NoError(t, store.Record(ctx, &View{RuleKey: "js:S1", RuleName: "two", Language: "js"}))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rules)
	assert.Equal(t, 3, stats.Views)
	assert.Equal(t, 1, stats.ByLanguage["go"])

	require.NoError(t, store.Delete(ctx, "go:S1"))
	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	// The full-text index follows deletions.
	found, err := store.Search(ctx, SearchQuery{Text: "one"})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, store.Clear(ctx))
	recent, err = store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestFTSPrefix(t *testing.T) {
	assert.Equal(t, `"go:S1"*`, ftsPrefix("go:S1"))
	assert.Equal(t, `"sql"* "inj"*`, ftsPrefix(" sql  inj "))
	assert.Equal(t, `"a""b"*`, ftsPrefix(`a"b`))
}
