package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"cinematch/internal/models"
	"cinematch/internal/util"
)

// CatalogColumns names the CSV header for each movie field.
type CatalogColumns struct {
	IMDBID   string `mapstructure:"imdb_id"`
	Title    string `mapstructure:"title"`
	Director string `mapstructure:"director"`
	Genres   string `mapstructure:"genres"`
	Body     string `mapstructure:"body"`
}

func DefaultCatalogColumns() CatalogColumns {
	return CatalogColumns{
		IMDBID:   "imdb_id",
		Title:    "original_title",
		Director: "director",
		Genres:   "genres",
		Body:     "body",
	}
}

func (c CatalogColumns) withDefaults() CatalogColumns {
	d := DefaultCatalogColumns()
	if c.IMDBID == "" {
		c.IMDBID = d.IMDBID
	}
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.Director == "" {
		c.Director = d.Director
	}
	if c.Genres == "" {
		c.Genres = d.Genres
	}
	if c.Body == "" {
		c.Body = d.Body
	}
	return c
}

// LoadCatalog reads movies from CSV. Title and body are required; the other
// columns are optional. Rows with a blank title are skipped. Movie IDs are
// left zero for the store to assign.
func LoadCatalog(r io.Reader, cols CatalogColumns) ([]models.Movie, error) {
	cols = cols.withDefaults()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: catalog has no header", models.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	idx := struct{ imdb, title, director, genres, body int }{
		columnIndex(header, cols.IMDBID),
		columnIndex(header, cols.Title),
		columnIndex(header, cols.Director),
		columnIndex(header, cols.Genres),
		columnIndex(header, cols.Body),
	}
	if idx.title < 0 || idx.body < 0 {
		return nil, fmt.Errorf("%w: catalog header must contain %q and %q", models.ErrConfiguration, cols.Title, cols.Body)
	}

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var movies []models.Movie
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read catalog line %d: %w", line, err)
		}
		title := field(rec, idx.title)
		if title == "" {
			continue
		}
		body, err := util.CleanText([]byte(field(rec, idx.body)), fmt.Sprintf("catalog line %d", line))
		if err != nil {
			return nil, err
		}
		movies = append(movies, models.Movie{
			IMDBID:   field(rec, idx.imdb),
			Title:    title,
			Director: field(rec, idx.director),
			Genres:   normalizeGenres(field(rec, idx.genres)),
			Body:     body,
		})
	}
	if len(movies) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no movies", models.ErrEmptyInput)
	}
	return movies, nil
}

// normalizeGenres accepts "Drama|Crime" or "Drama, Crime" and stores a
// comma separated list.
func normalizeGenres(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
