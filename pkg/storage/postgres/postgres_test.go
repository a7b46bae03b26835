package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/storage/postgres"
	"github.com/absmach/modelfactory/pkg/storage/testutil"
	"github.com/absmach/modelfactory/run"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *postgres.Database

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16.2-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start container: %s", err)
	}

	port := container.GetPort("5432/tcp")

	pool.MaxWait = 120 * time.Second
	if err := pool.Retry(func() error {
		url := fmt.Sprintf("host=localhost port=%s user=test dbname=test password=test sslmode=disable", port)
		db, err := sql.Open("pgx", url)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Ping()
	}); err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	testDB, err = postgres.NewDatabase("localhost", port, "test", "test", "test", "disable")
	if err != nil {
		log.Fatalf("Could not setup test DB connection: %s", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pool.Purge(container); err != nil {
		log.Fatalf("Could not purge container: %s", err)
	}

	os.Exit(code)
}

func TestRunRepository(t *testing.T) {
	repo := postgres.NewRunRepository(testDB)
	ctx := context.Background()

	cases := []struct {
		desc string
		run  run.Run
		err  error
	}{
		{
			desc: "create new run successfully",
			run:  testutil.TestRun(uuid.NewString()),
		},
		{
			desc: "create prediction run with files",
			run: func() run.Run {
				r := testutil.TestRun(uuid.NewString())
				r.Kind = run.KindPredict
				r.Competition = "numerai"
				r.Files = []string{"out/kazutsugi_predictions.csv"}
				r.Tournaments = map[string]float64{"kazutsugi": 0.02}

				return r
			}(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := repo.Create(ctx, tc.run)
			require.NoError(t, err)

			got, err := repo.Get(ctx, tc.run.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.run.Kind, got.Kind)
			assert.Equal(t, tc.run.Files, got.Files)
			assert.Equal(t, tc.run.Tournaments, got.Tournaments)
			assert.True(t, tc.run.CreatedAt.Equal(got.CreatedAt))
		})
	}

	_, err := repo.Get(ctx, "invalid-id-that-does-not-exist")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, testutil.TestRun(uuid.NewString())), pkgerrors.ErrNotFound)

	_, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, uint64(len(cases)))
}

func TestEpochRepository(t *testing.T) {
	runs := postgres.NewRunRepository(testDB)
	repo := postgres.NewEpochRepository(testDB)
	ctx := context.Background()

	r := testutil.TestRun(uuid.NewString())
	_, err := runs.Create(ctx, r)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.CreateEpoch(ctx, testutil.TestEpoch(r.ID, i)))
	}

	epochs, total, err := repo.ListEpochs(ctx, r.ID, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, epochs, 2)
	assert.Equal(t, 2, epochs[0].Epoch)
	assert.Equal(t, 3, epochs[1].Epoch)
}
