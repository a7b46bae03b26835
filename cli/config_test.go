package cli_test

import (
	"path/filepath"
	"testing"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/cli"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answers(competition string) cli.Answers {
	return cli.Answers{
		Competition: competition,
		Model:       "linear",
		ModelDir:    "models",
		DataPath:    "data/train.csv",
		TestPath:    "data/test.csv",
		Epochs:      "5",
		TrainFolds:  "0, 1,2,3",
		ValFolds:    "4",
		OutputDir:   "out",
		ToCSV:       true,
	}
}

func TestAnswersConfig(t *testing.T) {
	cases := []struct {
		desc   string
		mutate func(*cli.Answers)
		check  func(*testing.T, modelfactory.Config)
		err    error
	}{
		{
			desc:   "fold competition",
			mutate: func(*cli.Answers) {},
			check: func(t *testing.T, cfg modelfactory.Config) {
				assert.Equal(t, fold.Set{0, 1, 2, 3}, cfg.Training.TrainFolds)
				assert.Equal(t, fold.Set{4}, cfg.Training.ValFolds)
				assert.Equal(t, 5, cfg.Training.Epochs)
				assert.NoError(t, cfg.ValidateTraining())
			},
		},
		{
			desc:   "bengali image geometry",
			mutate: func(a *cli.Answers) { a.Competition = "bengali" },
			check: func(t *testing.T, cfg modelfactory.Config) {
				assert.Equal(t, 137, cfg.Data.ImageHeight)
				assert.Len(t, cfg.Data.Mean, 3)
			},
		},
		{
			desc:   "tournament",
			mutate: func(a *cli.Answers) { a.Competition = "numerai"; a.DataPath = "round.zip" },
			check: func(t *testing.T, cfg modelfactory.Config) {
				assert.Equal(t, "round.zip", cfg.Tournament.LocalData)
				assert.NoError(t, cfg.ValidateTournament())
			},
		},
		{
			desc:   "bad epochs",
			mutate: func(a *cli.Answers) { a.Epochs = "many" },
			err:    pkgerrors.ErrConfiguration,
		},
		{
			desc:   "bad folds",
			mutate: func(a *cli.Answers) { a.TrainFolds = "0,one" },
			err:    cli.ErrInvalidFolds,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			a := answers("imdb")
			tc.mutate(&a)
			cfg, err := a.Config()
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestWriteConfig(t *testing.T) {
	cfg, err := answers("imdb").Config()
	require.NoError(t, err)

	for _, name := range []string{"imdb.toml", "imdb.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cli.WriteConfig(path, cfg))

			loaded, err := modelfactory.LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Training.TrainFolds, loaded.Training.TrainFolds)
			assert.Equal(t, cfg.Training.ValFolds, loaded.Training.ValFolds)
			assert.Equal(t, cfg.Training.Epochs, loaded.Training.Epochs)
			assert.Equal(t, cfg.Training.InferenceFolds, loaded.Training.InferenceFolds)
			assert.Equal(t, cfg.Model, loaded.Model)
			assert.Equal(t, cfg.Output, loaded.Output)
			assert.Equal(t, cfg.Data.TrainPath, loaded.Data.TrainPath)
		})
	}
}
