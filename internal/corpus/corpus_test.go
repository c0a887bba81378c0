package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/models"
)

func TestLoadCSV(t *testing.T) {
	in := "id,review,sentiment\n" +
		"1,great movie loved it,positive\n" +
		"2,\"terrible waste of time\",0\n" +
		"3,   ,1\n"
	docs, err := LoadCSV(strings.NewReader(in), LoadOptions{TextField: "review", LabelField: "sentiment"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, models.Document{ID: 0, Text: "great movie loved it", Label: 1, Labeled: true}, docs[0])
	assert.Equal(t, 0, docs[1].Label)
	assert.Equal(t, 1, docs[1].ID)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), LoadOptions{})
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	_, err = LoadCSV(strings.NewReader("body,label\nx,1\n"), LoadOptions{})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = LoadCSV(strings.NewReader("text,label\nx,maybe\n"), LoadOptions{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = LoadCSV(strings.NewReader("text,label\n"), LoadOptions{})
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestLoadCSVLimit(t *testing.T) {
	in := "text,label\na,1\nb,0\nc,1\n"
	docs, err := LoadCSV(strings.NewReader(in), LoadOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestLoadJSONL(t *testing.T) {
	in := `{"text":"great movie","label":1}
{"text":"awful","label":"negative"}
{"text":"","label":1}
`
	docs, err := LoadJSONL(strings.NewReader(in), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].Label)
	assert.Equal(t, 0, docs[1].Label)

	_, err = LoadJSONL(strings.NewReader(`{"text":"x"}`), LoadOptions{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pos"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "neg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pos", "0_10.txt"), []byte("Loved it.<br />Great."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "neg", "0_2.txt"), []byte("Dull."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "neg", "1_1.txt"), []byte{0x00, 0x01}, 0o644))

	docs, err := Load(context.Background(), root, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 0, docs[0].Label)
	assert.Equal(t, 1, docs[1].Label)
	assert.Equal(t, FormatDir, DetectFormat(root))
}

func TestLoadUnknownFormat(t *testing.T) {
	_, err := Load(context.Background(), "x.csv", LoadOptions{Format: "xml"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestParseLabel(t *testing.T) {
	for in, want := range map[string]int{"1": 1, "0": 0, "Positive": 1, "neg": 0, "1.0": 1, " 0 ": 0} {
		got, err := ParseLabel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLabel("2")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSplit(t *testing.T) {
	docs := make([]models.Document, 10)
	for i := range docs {
		docs[i] = models.Document{ID: i, Text: "x", Label: i % 2, Labeled: true}
	}

	train, test, err := Split(docs, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	train2, test2, err := Split(docs, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	seen := map[int]bool{}
	for _, d := range append(append([]models.Document{}, train...), test...) {
		assert.False(t, seen[d.ID], "duplicate %d", d.ID)
		seen[d.ID] = true
	}
	assert.Len(t, seen, 10)

	_, _, err = Split(docs, 0, 1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, _, err = Split(docs[:1], 0.5, 1)
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	train, test, err = Split(docs[:2], 0.01, 1)
	require.NoError(t, err)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}

func TestLoadCatalog(t *testing.T) {
	in := "imdb_id,original_title,director,genres,body\n" +
		"tt0111161,The Shawshank Redemption,Frank Darabont,Drama|Crime,hope prison friendship\n" +
		"tt0068646,The Godfather,Francis Ford Coppola,\"Crime, Drama\",family mafia power\n" +
		"tt0000000,,Nobody,,skipped\n"
	movies, err := LoadCatalog(strings.NewReader(in), CatalogColumns{})
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "tt0111161", movies[0].IMDBID)
	assert.Equal(t, "Drama,Crime", movies[0].Genres)
	assert.Equal(t, "Crime,Drama", movies[1].Genres)
	assert.Equal(t, "family mafia power", movies[1].Body)

	_, err = LoadCatalog(strings.NewReader("title,body\n"), CatalogColumns{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
