package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/modelfactory/pkg/checkpoint"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	cases := []struct {
		desc   string
		model  string
		domain string
		fold   int
		want   string
	}{
		{desc: "bengali fold four", model: "resnet34", domain: "bengali", fold: 4, want: "resnet34_bengali_fold4.pth"},
		{desc: "fold zero", model: "linear", domain: "imdb", fold: 0, want: "linear_imdb_fold0.pth"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, checkpoint.Key(tc.model, tc.domain, tc.fold))
		})
	}

	assert.Equal(t, "ridge_bernie.pth", checkpoint.TournamentKey("ridge", "bernie"))
}

func newModel(t *testing.T, seed uint64) models.Model {
	t.Helper()
	m := models.NewLinear()
	require.NoError(t, m.Init(3, []models.Head{{Name: "y", Classes: 2}}, seed))

	return m
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", checkpoint.Key("linear", "bengali", 4))

	src := newModel(t, 1)
	n, err := checkpoint.Save(path, src)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.NotEmpty(t, checkpoint.Size(n))

	dst := newModel(t, 2)
	require.NoError(t, checkpoint.Load(path, dst))
	assert.Equal(t, src.StateDict(), dst.StateDict())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	err := checkpoint.Load(filepath.Join(dir, "missing.pth"), newModel(t, 1))
	assert.ErrorIs(t, err, pkgerrors.ErrCheckpointIO)

	garbage := filepath.Join(dir, "garbage.pth")
	require.NoError(t, os.WriteFile(garbage, []byte("not a checkpoint"), 0o600))
	err = checkpoint.Load(garbage, newModel(t, 1))
	assert.ErrorIs(t, err, pkgerrors.ErrCheckpointIO)

	path := filepath.Join(dir, "ok.pth")
	_, err = checkpoint.Save(path, newModel(t, 1))
	require.NoError(t, err)
	wrong := models.NewLinear()
	require.NoError(t, wrong.Init(5, []models.Head{{Name: "y", Classes: 2}}, 1))
	err = checkpoint.Load(path, wrong)
	assert.ErrorIs(t, err, pkgerrors.ErrCheckpointIO)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}
