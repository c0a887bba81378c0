package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"cinematch/internal/models"
)

type Details struct {
	TMDBID          int      `json:"tmdb_id" yaml:"tmdb_id"`
	Title           string   `json:"title" yaml:"title"`
	Rating          float64  `json:"rating" yaml:"rating"`
	Votes           int      `json:"votes" yaml:"votes"`
	ReleaseDate     string   `json:"release_date" yaml:"release_date"`
	Runtime         int      `json:"runtime" yaml:"runtime"`
	Tagline         string   `json:"tagline,omitempty" yaml:"tagline,omitempty"`
	Overview        string   `json:"overview" yaml:"overview"`
	Cast            []string `json:"cast" yaml:"cast"`
	Genres          []string `json:"genres" yaml:"genres"`
	Budget          int64    `json:"budget" yaml:"budget"`
	Revenue         int64    `json:"revenue" yaml:"revenue"`
	SpokenLanguages []string `json:"spoken_languages" yaml:"spoken_languages"`
	PosterURL       string   `json:"poster_url,omitempty" yaml:"poster_url,omitempty"`
}

type TrendingMovie struct {
	TMDBID    int     `json:"tmdb_id"`
	Title     string  `json:"title"`
	Rating    float64 `json:"rating"`
	PosterURL string  `json:"poster_url,omitempty"`
}

type named struct {
	Name string `json:"name"`
}

type movieResponse struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	VoteAverage     float64 `json:"vote_average"`
	VoteCount       int     `json:"vote_count"`
	ReleaseDate     string  `json:"release_date"`
	Runtime         int     `json:"runtime"`
	Tagline         string  `json:"tagline"`
	Overview        string  `json:"overview"`
	PosterPath      string  `json:"poster_path"`
	Budget          int64   `json:"budget"`
	Revenue         int64   `json:"revenue"`
	Genres          []named `json:"genres"`
	SpokenLanguages []struct {
		EnglishName string `json:"english_name"`
		Name        string `json:"name"`
	} `json:"spoken_languages"`
	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
	} `json:"credits"`
}

func (c *Client) movie(ctx context.Context, imdbID string, params url.Values) (*movieResponse, error) {
	id, err := c.FindID(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	var m movieResponse
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PosterURL returns the w500 poster for a movie, or ErrNotFound when TMDB
// has none.
func (c *Client) PosterURL(ctx context.Context, imdbID string) (string, error) {
	m, err := c.movie(ctx, imdbID, nil)
	if err != nil {
		return "", err
	}
	if m.PosterPath == "" {
		return "", fmt.Errorf("poster for %s: %w", imdbID, models.ErrNotFound)
	}
	return c.ImageURL(m.PosterPath), nil
}

// TrailerURL returns the first YouTube trailer of a movie.
func (c *Client) TrailerURL(ctx context.Context, imdbID string) (string, error) {
	id, err := c.FindID(ctx, imdbID)
	if err != nil {
		return "", err
	}
	var res struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id)+"/videos", nil, &res); err != nil {
		return "", err
	}
	for _, v := range res.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			return youTubeURL + v.Key, nil
		}
	}
	return "", fmt.Errorf("trailer for %s: %w", imdbID, models.ErrNotFound)
}

// Details fetches the movie record with its credits in one request.
func (c *Client) Details(ctx context.Context, imdbID string) (*Details, error) {
	m, err := c.movie(ctx, imdbID, url.Values{"append_to_response": {"credits"}})
	if err != nil {
		return nil, err
	}
	d := &Details{
		TMDBID:      m.ID,
		Title:       m.Title,
		Rating:      m.VoteAverage,
		Votes:       m.VoteCount,
		ReleaseDate: m.ReleaseDate,
		Runtime:     m.Runtime,
		Tagline:     m.Tagline,
		Overview:    m.Overview,
		Budget:      m.Budget,
		Revenue:     m.Revenue,
		PosterURL:   c.ImageURL(m.PosterPath),
	}
	for _, g := range m.Genres {
		d.Genres = append(d.Genres, g.Name)
	}
	for _, l := range m.SpokenLanguages {
		name := l.EnglishName
		if name == "" {
			name = l.Name
		}
		d.SpokenLanguages = append(d.SpokenLanguages, name)
	}
	// Credits arrive in billing order already.
	for _, p := range m.Credits.Cast {
		if len(d.Cast) == castLimit {
			break
		}
		d.Cast = append(d.Cast, p.Name)
	}
	return d, nil
}

// Trending returns this week's top n trending movies (n <= 0 means 5).
func (c *Client) Trending(ctx context.Context, n int) ([]TrendingMovie, error) {
	if n <= 0 {
		n = 5
	}
	var res struct {
		Results []struct {
			ID          int     `json:"id"`
			Title       string  `json:"title"`
			VoteAverage float64 `json:"vote_average"`
			PosterPath  string  `json:"poster_path"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/trending/movie/week", nil, &res); err != nil {
		return nil, err
	}
	out := make([]TrendingMovie, 0, n)
	for _, r := range res.Results {
		if len(out) == n {
			break
		}
		out = append(out, TrendingMovie{TMDBID: r.ID, Title: r.Title, Rating: r.VoteAverage, PosterURL: c.ImageURL(r.PosterPath)})
	}
	return out, nil
}
