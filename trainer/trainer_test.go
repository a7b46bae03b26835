package trainer_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/absmach/modelfactory/pkg/blobstore"
	"github.com/absmach/modelfactory/pkg/dataset"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/absmach/modelfactory/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separable(n int) dataset.Slice {
	out := make(dataset.Slice, n)
	for i := range out {
		cls := i % 2
		x := float32(1)
		if cls == 0 {
			x = -1
		}
		out[i] = dataset.Sample{
			ID:     fmt.Sprintf("s%d", i),
			Input:  []float32{x, 0.5},
			Labels: map[string]int{"sentiment": cls, "parity": cls},
		}
	}

	return out
}

func classifierOpts() trainer.Options {
	return trainer.Options{
		ModelName:             models.LinearName,
		InputDim:              2,
		Heads:                 []models.Head{{Name: "sentiment", Classes: 2}},
		LearningRate:          0.5,
		SchedulerFactor:       0.3,
		SchedulerPatience:     5,
		EarlyStoppingPatience: 5,
		Seed:                  1,
	}
}

func loader(ds dataset.Dataset, shuffle bool) *dataset.Loader {
	return dataset.NewLoader(ds, dataset.LoaderOptions{BatchSize: 4, Shuffle: shuffle, Workers: 2, Seed: 3})
}

func TestClassifierLearns(t *testing.T) {
	tr, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)

	ds := separable(16)
	firstLoss, _, err := tr.Evaluate(context.Background(), loader(ds, false))
	require.NoError(t, err)

	for range 20 {
		_, _, err := tr.Train(context.Background(), loader(ds, true))
		require.NoError(t, err)
	}

	loss, score, err := tr.Evaluate(context.Background(), loader(ds, false))
	require.NoError(t, err)
	assert.Less(t, loss, firstLoss)
	assert.Equal(t, 1.0, score)
}

func TestClassifierEvaluateKeepsWeights(t *testing.T) {
	tr, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)
	dir := t.TempDir()

	ds := separable(8)
	l1, s1, err := tr.Evaluate(context.Background(), loader(ds, false))
	require.NoError(t, err)
	l2, s2, err := tr.Evaluate(context.Background(), loader(ds, false))
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
	assert.Equal(t, s1, s2)

	before := filepath.Join(dir, "before.pth")
	require.NoError(t, tr.SaveLocal(before))
	other, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)
	require.NoError(t, other.LoadLocal(before))
	l3, _, err := other.Evaluate(context.Background(), loader(ds, false))
	require.NoError(t, err)
	assert.InDelta(t, l1, l3, 1e-12)
}

func TestClassifierMultiHeadScore(t *testing.T) {
	opts := classifierOpts()
	opts.Heads = []models.Head{{Name: "sentiment", Classes: 2}, {Name: "parity", Classes: 3}}
	opts.ScoreWeights = []float64{2, 1}
	tr, err := trainer.NewClassifier(opts)
	require.NoError(t, err)

	_, score, err := tr.Evaluate(context.Background(), loader(separable(8), false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	missing := dataset.Slice{{ID: "x", Input: []float32{1, 1}, Labels: map[string]int{"sentiment": 1}}}
	_, _, err = tr.Evaluate(context.Background(), loader(missing, false))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestClassifierInferOrder(t *testing.T) {
	tr, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)

	var ids []string
	err = tr.Infer(context.Background(), loader(separable(10), false), func(batch []string, out map[string][][]float64) error {
		ids = append(ids, batch...)
		assert.Len(t, out["sentiment"], len(batch))
		assert.Len(t, out["sentiment"][0], 2)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"}, ids)
}

func TestPlace(t *testing.T) {
	tr, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, tr.Devices())

	require.NoError(t, tr.Place([]int{1, 0}))
	assert.Equal(t, []int{1, 0}, tr.Devices())
	_, score, err := tr.Evaluate(context.Background(), loader(separable(8), false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)

	path := filepath.Join(t.TempDir(), "dp.pth")
	require.NoError(t, tr.SaveLocal(path))
	single, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)
	require.NoError(t, single.LoadLocal(path))

	assert.ErrorIs(t, tr.Place(nil), pkgerrors.ErrConfiguration)
	require.NoError(t, tr.Place([]int{0}))
	assert.Equal(t, []int{0}, tr.Devices())
}

func TestRemoteCheckpoints(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	opts := classifierOpts()
	opts.Blobs = provider
	tr, err := trainer.NewClassifier(opts)
	require.NoError(t, err)

	dir := t.TempDir()
	creds := blobstore.Credentials{AccessKey: "key", SecretKey: "secret", Bucket: "models"}
	local := filepath.Join(dir, "linear_imdb_fold4.pth")
	require.NoError(t, tr.SaveLocal(local))
	require.NoError(t, tr.SaveRemote(context.Background(), local, "linear_imdb_fold4.pth", creds))

	fetched := filepath.Join(dir, "fetched", "linear_imdb_fold4.pth")
	require.NoError(t, tr.LoadRemote(context.Background(), fetched, "linear_imdb_fold4.pth", creds))
	require.NoError(t, tr.LoadLocal(fetched))

	err = tr.LoadRemote(context.Background(), fetched, "missing.pth", creds)
	assert.ErrorIs(t, err, pkgerrors.ErrRemoteStorage)

	plain, err := trainer.NewClassifier(classifierOpts())
	require.NoError(t, err)
	err = plain.SaveRemote(context.Background(), local, "x", creds)
	assert.ErrorIs(t, err, pkgerrors.ErrRemoteStorage)

	assert.ErrorIs(t, tr.LoadLocal(filepath.Join(dir, "absent.pth")), pkgerrors.ErrCheckpointIO)
}

func tabular(n int) dataset.Slice {
	out := make(dataset.Slice, n)
	for i := range out {
		a := float32(i%7) / 7
		b := float32(i%3) / 3
		out[i] = dataset.Sample{
			ID:     fmt.Sprintf("n%d", i),
			Group:  fmt.Sprintf("era%d", i/5),
			Input:  []float32{a, b},
			Target: float64(2*a - b),
		}
	}

	return out
}

func TestRegressor(t *testing.T) {
	cases := []struct {
		desc   string
		model  string
		epochs int
	}{
		{desc: "closed form fit", model: models.RidgeName, epochs: 1},
		{desc: "gradient steps", model: models.LinearName, epochs: 60},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tr, err := trainer.NewRegressor(trainer.Options{
				ModelName:    tc.model,
				InputDim:     2,
				Heads:        []models.Head{{Name: "target", Classes: 1}},
				LearningRate: 0.5,
				Seed:         1,
			})
			require.NoError(t, err)

			ds := tabular(30)
			for range tc.epochs {
				_, _, err := tr.Train(context.Background(), loader(ds, true))
				require.NoError(t, err)
			}
			_, score, err := tr.Evaluate(context.Background(), loader(ds, false))
			require.NoError(t, err)
			assert.Greater(t, score, 0.9)
		})
	}

	_, err := trainer.NewRegressor(trainer.Options{ModelName: models.RidgeName, InputDim: 2, Heads: []models.Head{{Name: "t", Classes: 2}}})
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
}

func TestFactory(t *testing.T) {
	f := trainer.DefaultFactory()
	assert.Equal(t, []string{"bengali", "google", "imdb", "numerai"}, f.Names())

	cases := []struct {
		desc string
		name string
		err  error
	}{
		{desc: "bengali", name: "bengali"},
		{desc: "numerai", name: "numerai"},
		{desc: "unknown competition", name: "mnist", err: pkgerrors.ErrUnknownDomain},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ctor, err := f.Get(tc.name)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
				assert.Nil(t, ctor)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, ctor)
		})
	}

	opts := classifierOpts()
	opts.ModelName = "resnet34"
	_, err := trainer.NewClassifier(opts)
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
}
