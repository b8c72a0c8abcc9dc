package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/karlosatvar19/movies-app/internal/domain"
)

// movieSelectList is the column list for SELECT/RETURNING on movies
// (single source for schema changes).
const movieSelectList = `id, title, year, director, plot, poster, imdb_id, type, created_at, updated_at`

// MovieRepository handles database operations for movies.
type MovieRepository struct {
	db *sqlx.DB
}

// NewMovieRepository creates a new movie repository.
func NewMovieRepository(db *sqlx.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Ping verifies the database connection.
func (r *MovieRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindByID retrieves a movie by its primary key.
// Returns domain.ErrNotFound when no movie matches.
func (r *MovieRepository) FindByID(ctx context.Context, id string) (*domain.Movie, error) {
	var movie domain.Movie
	query := `SELECT ` + movieSelectList + ` FROM movies WHERE id = $1`

	err := r.db.GetContext(ctx, &movie, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get movie: %w", err)
	}

	return &movie, nil
}

// FindByImdbID retrieves a movie by its external identifier.
// Absence is not an error: the result is (nil, nil) when no movie matches.
func (r *MovieRepository) FindByImdbID(ctx context.Context, imdbID string) (*domain.Movie, error) {
	var movie domain.Movie
	query := `SELECT ` + movieSelectList + ` FROM movies WHERE imdb_id = $1`

	err := r.db.GetContext(ctx, &movie, query, imdbID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movie by imdb id: %w", err)
	}

	return &movie, nil
}

// FindAll retrieves movies ordered newest first.
func (r *MovieRepository) FindAll(ctx context.Context, skip, limit int) ([]domain.Movie, error) {
	var movies []domain.Movie
	query := `
		SELECT ` + movieSelectList + `
		FROM movies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	err := r.db.SelectContext(ctx, &movies, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}

	if movies == nil {
		movies = []domain.Movie{}
	}

	return movies, nil
}

// Search retrieves movies whose title, director or plot matches query,
// case-insensitively. An empty query falls back to FindAll.
func (r *MovieRepository) Search(ctx context.Context, query string, skip, limit int) ([]domain.Movie, error) {
	pattern := searchPattern(query)
	if pattern == "" {
		return r.FindAll(ctx, skip, limit)
	}

	var movies []domain.Movie
	stmt := `
		SELECT ` + movieSelectList + `
		FROM movies
		WHERE title ILIKE $1 OR director ILIKE $1 OR plot ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &movies, stmt, pattern, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}

	if movies == nil {
		movies = []domain.Movie{}
	}

	return movies, nil
}

// Count returns the total number of movies.
func (r *MovieRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM movies`); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return count, nil
}

// CountSearch returns the number of movies matching query.
func (r *MovieRepository) CountSearch(ctx context.Context, query string) (int, error) {
	pattern := searchPattern(query)
	if pattern == "" {
		return r.Count(ctx)
	}

	var count int
	stmt := `
		SELECT COUNT(*)
		FROM movies
		WHERE title ILIKE $1 OR director ILIKE $1 OR plot ILIKE $1
	`
	if err := r.db.GetContext(ctx, &count, stmt, pattern); err != nil {
		return 0, fmt.Errorf("count search results: %w", err)
	}
	return count, nil
}

// SaveIfAbsent inserts a movie keyed on its imdb id, creating it at most
// once. The bool reports whether this call created the row: an existing
// record is returned unchanged with false, including when a concurrent
// insert wins the race between the lookup and the insert. In that case the
// ON CONFLICT clause swallows the duplicate and the winner's row is
// re-fetched. The unique index on imdb_id remains the authority.
func (r *MovieRepository) SaveIfAbsent(ctx context.Context, movie *domain.Movie) (*domain.Movie, bool, error) {
	if movie.ImdbID == "" {
		return nil, false, domain.ErrMissingImdbID
	}

	existing, err := r.FindByImdbID(ctx, movie.ImdbID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	query := `
		INSERT INTO movies (title, year, director, plot, poster, imdb_id, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (imdb_id) DO NOTHING
		RETURNING ` + movieSelectList + `
	`

	var saved domain.Movie
	err = r.db.QueryRowxContext(
		ctx,
		query,
		movie.Title,
		movie.Year,
		movie.Director,
		movie.Plot,
		movie.Poster,
		movie.ImdbID,
		movie.Type,
		movie.CreatedAt,
		movie.UpdatedAt,
	).StructScan(&saved)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race: another writer inserted the same imdb id
			// between the lookup and the insert.
			raced, racedErr := r.FindByImdbID(ctx, movie.ImdbID)
			if racedErr != nil {
				return nil, false, racedErr
			}
			if raced != nil {
				return raced, false, nil
			}
			return nil, false, fmt.Errorf("save movie %s: insert returned no row", movie.ImdbID)
		}
		return nil, false, fmt.Errorf("save movie %s: %w", movie.ImdbID, err)
	}

	return &saved, true, nil
}

// searchPattern normalizes whitespace in query and wraps it for ILIKE.
// Returns "" for blank queries.
func searchPattern(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return ""
	}
	return "%" + normalized + "%"
}
