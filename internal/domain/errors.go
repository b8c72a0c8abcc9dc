package domain

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrMissingImdbID is returned when a movie is saved without an external
// identifier. The imdb id is the natural key of the catalog.
var ErrMissingImdbID = errors.New("imdb id is required to save a movie")
