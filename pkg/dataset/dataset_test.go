package dataset_test

import (
	"archive/zip"
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absmach/modelfactory/pkg/dataset"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foldsCSV = `image_id,grapheme_root,vowel_diacritic,consonant_diacritic,kfold
Train_0,15,9,5,0
Train_1,159,0,0,1
Train_2,22,3,5,4
Train_3,53,2,2,4
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	return p
}

func collect(t *testing.T, ds dataset.Dataset) []dataset.Sample {
	t.Helper()
	out := make([]dataset.Sample, ds.Len())
	for i := range out {
		s, err := ds.Get(context.Background(), i)
		require.NoError(t, err)
		out[i] = s
	}

	return out
}

func TestImageFoldsRestrictsRows(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "train_folds.csv", foldsCSV)
	for _, id := range []string{"Train_0", "Train_1", "Train_2", "Train_3"} {
		img := imaging.New(8, 6, color.White)
		require.NoError(t, imaging.Save(img, filepath.Join(dir, id+".png")))
	}
	geo := dataset.Geometry{Height: 4, Width: 4, Mean: []float64{0.5, 0.5, 0.5}, Std: []float64{0.5, 0.5, 0.5}}
	tasks := []string{"grapheme_root", "vowel_diacritic", "consonant_diacritic"}

	cases := []struct {
		desc  string
		folds fold.Set
		ids   []string
	}{
		{desc: "validation fold", folds: fold.Set{4}, ids: []string{"Train_2", "Train_3"}},
		{desc: "training folds", folds: fold.Set{0, 1, 2, 3}, ids: []string{"Train_0", "Train_1"}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ds, err := dataset.NewImageFolds(dataset.ImageFoldOptions{
				CSVPath:  csvPath,
				ImageDir: dir,
				Folds:    tc.folds,
				Tasks:    tasks,
				Geometry: geo,
			})
			require.NoError(t, err)

			ids := []string{}
			for _, s := range collect(t, ds) {
				ids = append(ids, s.ID)
				assert.True(t, tc.folds.Contains(s.Fold))
				assert.Len(t, s.Input, geo.InputDim())
				assert.InDelta(t, 1.0, s.Input[0], 0.02)
				assert.Len(t, s.Labels, len(tasks))
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestImageFoldsLabels(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "train_folds.csv", foldsCSV)
	require.NoError(t, imaging.Save(imaging.New(4, 4, color.Black), filepath.Join(dir, "Train_0.png")))

	ds, err := dataset.NewImageFolds(dataset.ImageFoldOptions{
		CSVPath:  csvPath,
		ImageDir: dir,
		Folds:    fold.Set{0},
		Tasks:    []string{"grapheme_root", "vowel_diacritic"},
		Geometry: dataset.Geometry{Height: 4, Width: 4},
	})
	require.NoError(t, err)

	s, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"grapheme_root": 15, "vowel_diacritic": 9}, s.Labels)
	assert.Equal(t, float32(0), s.Input[0])
}

func TestImageFoldsMissingData(t *testing.T) {
	dir := t.TempDir()

	_, err := dataset.NewImageFolds(dataset.ImageFoldOptions{CSVPath: filepath.Join(dir, "missing.csv")})
	assert.ErrorIs(t, err, pkgerrors.ErrDataUnavailable)

	csvPath := writeFile(t, dir, "train_folds.csv", foldsCSV)
	ds, err := dataset.NewImageFolds(dataset.ImageFoldOptions{
		CSVPath:  csvPath,
		ImageDir: dir,
		Folds:    fold.Set{1},
		Geometry: dataset.Geometry{Height: 2, Width: 2},
	})
	require.NoError(t, err)
	_, err = ds.Get(context.Background(), 0)
	assert.ErrorIs(t, err, pkgerrors.ErrDataUnavailable)
}

func TestImageShard(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_image_data_0.csv", "image_id,0,1,2,3\nTest_0,0,255,0,255\nTest_1,255,255,255,255\n")
	geo := dataset.Geometry{Height: 2, Width: 2}

	ds, err := dataset.NewImageShard(dataset.ShardPath(dir, 0), geo)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	samples := collect(t, ds)
	assert.Equal(t, "Test_0", samples[0].ID)
	assert.Equal(t, []float32{0, 1, 0, 1}, samples[0].Input[:4])
	assert.Equal(t, samples[0].Input[:4], samples[0].Input[4:8], "gray is replicated across channels")
	assert.Empty(t, samples[0].Labels)

	_, err = dataset.NewImageShard(dataset.ShardPath(dir, 0), dataset.Geometry{Height: 3, Width: 3})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	_, err = dataset.NewImageShard(dataset.ShardPath(dir, 1), geo)
	assert.ErrorIs(t, err, pkgerrors.ErrDataUnavailable)
}

func TestTokenizer(t *testing.T) {
	cases := []struct {
		desc string
		tok  dataset.Tokenizer
		text string
		want []string
	}{
		{desc: "lower cases words", tok: dataset.Tokenizer{}, text: "Great Movie", want: []string{"great", "movie"}},
		{desc: "strips accents", tok: dataset.Tokenizer{}, text: "Café déjà vu", want: []string{"cafe", "deja", "vu"}},
		{desc: "splits punctuation", tok: dataset.Tokenizer{}, text: "bad, really!", want: []string{"bad", ",", "really", "!"}},
		{desc: "truncates to max length", tok: dataset.Tokenizer{MaxLen: 2}, text: "one two three", want: []string{"one", "two"}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tok.Tokens(tc.text))
		})
	}
}

func TestTokenizerEncode(t *testing.T) {
	tok := dataset.Tokenizer{HashDim: 32}

	vec := tok.Encode("a b c a")
	require.Len(t, vec, 32)
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	assert.Equal(t, vec, tok.Encode("A  B C a"))
	assert.Equal(t, make([]float32, 32), tok.Encode("   "))
}

func TestText(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "imdb_folds.csv", "review,sentiment,kfold\n\"Loved it, truly\",positive,0\nAwful,negative,1\nFine,positive,1\n")

	opts := dataset.TextOptions{
		CSVPath:     p,
		Folds:       fold.Set{1},
		TextColumns: []string{"review"},
		LabelColumn: "sentiment",
		Task:        "sentiment",
		LabelMap:    map[string]int{"negative": 0, "positive": 1},
		Tokenizer:   dataset.Tokenizer{HashDim: 16},
	}
	ds, err := dataset.NewText(opts)
	require.NoError(t, err)

	samples := collect(t, ds)
	require.Len(t, samples, 2)
	assert.Equal(t, map[string]int{"sentiment": 0}, samples[0].Labels)
	assert.Equal(t, map[string]int{"sentiment": 1}, samples[1].Labels)
	assert.Equal(t, 1, samples[0].Fold)
	assert.Len(t, samples[0].Input, 16)

	opts.LabelMap = map[string]int{"positive": 1}
	_, err = dataset.NewText(opts)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestTextUnlabelled(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "test.csv", "qa_id,question_title,answer\n39,How?,Like this\n46,Why?,Because\n")

	ds, err := dataset.NewText(dataset.TextOptions{
		CSVPath:     p,
		IDColumn:    "qa_id",
		TextColumns: []string{"question_title", "answer"},
		Tokenizer:   dataset.Tokenizer{HashDim: 8},
	})
	require.NoError(t, err)

	samples := collect(t, ds)
	assert.Equal(t, "39", samples[0].ID)
	assert.Equal(t, "46", samples[1].ID)
	assert.Nil(t, samples[0].Labels)
}

func writeRoundZip(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, "round.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return p
}

func TestTabular(t *testing.T) {
	training := strings.Join([]string{
		"id,era,data_type,feature1,feature2,target_bernie",
		"n1,era1,train,0.25,0.5,1",
		"n2,era1,train,0.75,0.5,0",
		"n3,era2,train,0.5,0,1",
	}, "\n")
	tournament := strings.Join([]string{
		"id,era,data_type,feature1,feature2,target_bernie",
		"t1,era121,validation,0.5,0.5,1",
		"t2,era122,validation,0.25,1,0",
		"t3,eraX,live,0.5,0.25,",
	}, "\n")
	p := writeRoundZip(t, t.TempDir(), map[string]string{
		"numerai_dataset/" + dataset.TrainingFile: training,
		"numerai_dataset/" + dataset.TournamentFile: tournament,
	})

	tab, err := dataset.OpenTabularZip(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature1", "feature2"}, tab.Features())

	train, err := tab.Training("bernie")
	require.NoError(t, err)
	samples := collect(t, train)
	require.Len(t, samples, 3)
	assert.Equal(t, []float32{0.25, 0.5}, samples[0].Input)
	assert.Equal(t, "era1", samples[0].Group)
	assert.InDelta(t, 1.0, samples[0].Target, 1e-9)

	val, err := tab.Validation("bernie")
	require.NoError(t, err)
	assert.Equal(t, 2, val.Len())

	live, err := tab.Tournament("bernie")
	require.NoError(t, err)
	all := collect(t, live)
	require.Len(t, all, 3)
	assert.True(t, math.IsNaN(all[2].Target))

	eras, groups, err := dataset.Eras(context.Background(), train)
	require.NoError(t, err)
	assert.Equal(t, []string{"era1", "era2"}, eras)
	assert.Equal(t, []int{0, 1}, groups["era1"])

	_, err = tab.Training("elizabeth")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestTabularMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := dataset.OpenTabularZip(filepath.Join(dir, "absent.zip"))
	assert.ErrorIs(t, err, pkgerrors.ErrDataUnavailable)

	p := writeRoundZip(t, dir, map[string]string{dataset.TrainingFile: "id,era,data_type,feature1\nn1,era1,train,0.5\n"})
	_, err = dataset.OpenTabularZip(p)
	assert.ErrorIs(t, err, pkgerrors.ErrDataUnavailable)
}
