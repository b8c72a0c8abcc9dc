// Package domain defines the core types shared across the movies service.
package domain

import "time"

// Movie is a catalog record persisted in the movies table. The imdb_id
// column carries a unique index; a movie is created at most once per
// external identifier and never overwritten by a later fetch.
type Movie struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Year      string    `db:"year" json:"year"`
	Director  string    `db:"director" json:"director"`
	Plot      string    `db:"plot" json:"plot"`
	Poster    string    `db:"poster" json:"poster"`
	ImdbID    string    `db:"imdb_id" json:"imdbID"`
	Type      string    `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// FetchResult is the outcome of a single fetch job run.
type FetchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}
