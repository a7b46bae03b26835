package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/storage"
	"github.com/absmach/modelfactory/pkg/storage/testutil"
	"github.com/absmach/modelfactory/run"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]*storage.Repositories {
	t.Helper()

	dir := t.TempDir()
	out := map[string]*storage.Repositories{}
	for _, cfg := range []storage.Config{
		{Type: "memory"},
		{Type: "badger", BadgerPath: filepath.Join(dir, "badger")},
		{Type: "sqlite", SQLitePath: filepath.Join(dir, "runs.db")},
	} {
		repos, err := storage.NewRepositories(cfg)
		require.NoError(t, err, cfg.Type)
		if repos.Closer != nil {
			t.Cleanup(func() { _ = repos.Closer.Close() })
		}
		out[cfg.Type] = repos
	}

	return out
}

func assertSameRun(t *testing.T, want, got run.Run) {
	t.Helper()

	for _, pair := range [][2]time.Time{
		{want.StartTime, got.StartTime},
		{want.FinishTime, got.FinishTime},
		{want.CreatedAt, got.CreatedAt},
		{want.UpdatedAt, got.UpdatedAt},
	} {
		assert.True(t, pair[0].Equal(pair[1]), "time %s != %s", pair[0], pair[1])
	}
	want.StartTime, got.StartTime = time.Time{}, time.Time{}
	want.FinishTime, got.FinishTime = time.Time{}, time.Time{}
	want.CreatedAt, got.CreatedAt = time.Time{}, time.Time{}
	want.UpdatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}

func TestRunRepository(t *testing.T) {
	for name, repos := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := repos.Runs

			r := testutil.TestRun(uuid.NewString())
			r.Tournaments = map[string]float64{"kazutsugi": 0.03}
			created, err := repo.Create(ctx, r)
			require.NoError(t, err)
			assert.Equal(t, r.ID, created.ID)

			got, err := repo.Get(ctx, r.ID)
			require.NoError(t, err)
			assertSameRun(t, r, got)

			r.State = run.Failed
			r.Error = "checkpoint io error"
			require.NoError(t, repo.Update(ctx, r))
			got, err = repo.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, run.Failed, got.State)
			assert.Equal(t, "checkpoint io error", got.Error)

			_, err = repo.Get(ctx, "invalid-id-that-does-not-exist")
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

			missing := testutil.TestRun(uuid.NewString())
			assert.Error(t, repo.Update(ctx, missing))

			require.NoError(t, repo.Delete(ctx, r.ID))
			_, err = repo.Get(ctx, r.ID)
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		})
	}
}

func TestRunRepositoryList(t *testing.T) {
	for name, repos := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)
			var ids []string
			for i := range 5 {
				r := testutil.TestRun(uuid.NewString())
				r.CreatedAt = base.Add(time.Duration(i) * time.Second)
				_, err := repos.Runs.Create(ctx, r)
				require.NoError(t, err)
				ids = append(ids, r.ID)
			}

			cases := []struct {
				desc   string
				offset uint64
				limit  uint64
				ids    []string
			}{
				{desc: "first page newest first", offset: 0, limit: 2, ids: []string{ids[4], ids[3]}},
				{desc: "second page", offset: 2, limit: 2, ids: []string{ids[2], ids[1]}},
				{desc: "last partial page", offset: 4, limit: 2, ids: []string{ids[0]}},
				{desc: "offset past the end", offset: 10, limit: 2, ids: []string{}},
			}

			for _, tc := range cases {
				t.Run(tc.desc, func(t *testing.T) {
					runs, total, err := repos.Runs.List(ctx, tc.offset, tc.limit)
					require.NoError(t, err)
					assert.Equal(t, uint64(5), total)
					got := []string{}
					for _, r := range runs {
						got = append(got, r.ID)
					}
					assert.Equal(t, tc.ids, got)
				})
			}
		})
	}
}

func TestEpochRepository(t *testing.T) {
	for name, repos := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := testutil.TestRun(uuid.NewString())
			_, err := repos.Runs.Create(ctx, r)
			require.NoError(t, err)

			for i := 1; i <= 3; i++ {
				require.NoError(t, repos.Epochs.CreateEpoch(ctx, testutil.TestEpoch(r.ID, i)))
			}
			require.NoError(t, repos.Epochs.CreateEpoch(ctx, testutil.TestEpoch(uuid.NewString(), 1)))

			epochs, total, err := repos.Epochs.ListEpochs(ctx, r.ID, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), total)
			require.Len(t, epochs, 3)
			for i, e := range epochs {
				assert.Equal(t, i+1, e.Epoch)
				assert.Equal(t, r.ID, e.RunID)
			}
			assert.True(t, epochs[0].Checkpointed)

			epochs, total, err = repos.Epochs.ListEpochs(ctx, r.ID, 1, 1)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), total)
			require.Len(t, epochs, 1)
			assert.Equal(t, 2, epochs[0].Epoch)
		})
	}
}

func TestMemoryRepositoryKeys(t *testing.T) {
	ctx := context.Background()
	runs := storage.NewMemoryRunRepository()
	epochs := storage.NewMemoryEpochRepository()

	cases := []struct {
		desc string
		run  run.Run
		err  error
	}{
		{desc: "create run", run: run.Run{ID: "a"}},
		{desc: "create duplicate run", run: run.Run{ID: "a"}, err: pkgerrors.ErrEntityExists},
		{desc: "create run without id", run: run.Run{}, err: pkgerrors.ErrEmptyKey},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := runs.Create(ctx, tc.run)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	assert.ErrorIs(t, runs.Update(ctx, run.Run{ID: "b"}), pkgerrors.ErrNotFound)
	_, err := runs.Get(ctx, "")
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)

	ep := run.Epoch{RunID: "a", Epoch: 1}
	require.NoError(t, epochs.CreateEpoch(ctx, ep))
	assert.ErrorIs(t, epochs.CreateEpoch(ctx, ep), pkgerrors.ErrEntityExists)
	assert.ErrorIs(t, epochs.CreateEpoch(ctx, run.Epoch{Epoch: 1}), pkgerrors.ErrEmptyKey)

	require.NoError(t, runs.Delete(ctx, "a"))
	_, err = runs.Get(ctx, "a")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
