// Package fetch runs asynchronous catalog fetch jobs: paginate the external
// API, deduplicate results, persist new movies and stream progress events.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/domain"
	"github.com/karlosatvar19/movies-app/internal/logger"
	"github.com/karlosatvar19/movies-app/internal/omdb"
)

// pageSize is the fixed page size of the external search API.
const pageSize = 10

// Job outcomes reported to telemetry.
const (
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// CatalogClient fetches pages and full records from the external catalog.
type CatalogClient interface {
	Search(ctx context.Context, title, year string, page int) (*omdb.SearchResult, error)
	Details(ctx context.Context, imdbID string) (*omdb.MovieDetail, error)
}

// MovieStore persists movies keyed on their imdb id.
type MovieStore interface {
	FindByImdbID(ctx context.Context, imdbID string) (*domain.Movie, error)
	SaveIfAbsent(ctx context.Context, movie *domain.Movie) (*domain.Movie, bool, error)
}

// Registry tracks which jobs are still allowed to run.
type Registry interface {
	Register(jobID string)
	IsActive(jobID string) bool
	Remove(jobID string)
}

// ProgressPublisher streams job lifecycle events to subscribers.
type ProgressPublisher interface {
	FetchStarted(ctx context.Context, jobID, searchTerm string)
	FetchProgress(ctx context.Context, jobID, searchTerm, status string, progress, total int)
	FetchCompleted(ctx context.Context, jobID, searchTerm string, newMovies int)
	FetchError(ctx context.Context, jobID, message string)
}

// CacheInvalidator drops stale read-side cache entries after a job adds
// movies. Optional.
type CacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Telemetry records job and catalog metrics plus trace spans.
type Telemetry interface {
	RecordJobStart()
	RecordJobEnd(outcome string, duration time.Duration)
	RecordMovieStored(inserted bool)
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Orchestrator coordinates fetch jobs end to end.
type Orchestrator struct {
	catalog     CatalogClient
	store       MovieStore
	registry    Registry
	publisher   ProgressPublisher
	cache       CacheInvalidator
	telemetry   Telemetry
	logger      logger.Logger
	maxPages    int
	defaultTerm string
	defaultYear string
}

// NewOrchestrator creates an orchestrator. cache may be nil.
func NewOrchestrator(
	catalog CatalogClient,
	store MovieStore,
	registry Registry,
	publisher ProgressPublisher,
	cache CacheInvalidator,
	tel Telemetry,
	log logger.Logger,
	cfg config.FetchConfig,
) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = config.DefaultMaxPages
	}
	if cfg.DefaultSearchTerm == "" {
		cfg.DefaultSearchTerm = config.DefaultSearchTerm
	}
	if cfg.DefaultYear == "" {
		cfg.DefaultYear = config.DefaultYear
	}
	return &Orchestrator{
		catalog:     catalog,
		store:       store,
		registry:    registry,
		publisher:   publisher,
		cache:       cache,
		telemetry:   tel,
		logger:      log,
		maxPages:    cfg.MaxPages,
		defaultTerm: cfg.DefaultSearchTerm,
		defaultYear: cfg.DefaultYear,
	}
}

// Normalize collapses whitespace in the search term and substitutes the
// configured defaults for blank inputs.
func (o *Orchestrator) Normalize(searchTerm, year string) (string, string) {
	searchTerm = strings.Join(strings.Fields(searchTerm), " ")
	if searchTerm == "" {
		searchTerm = o.defaultTerm
	}
	year = strings.TrimSpace(year)
	if year == "" {
		year = o.defaultYear
	}
	return searchTerm, year
}

// StartJob registers a new job and runs it in the background, returning the
// job ID immediately. The run error is only logged; subscribers learn about
// failures through fetch:error events.
func (o *Orchestrator) StartJob(ctx context.Context, searchTerm, year string) string {
	searchTerm, year = o.Normalize(searchTerm, year)

	jobID := uuid.NewString()
	o.registry.Register(jobID)
	o.telemetry.RecordJobStart()

	o.logger.Info("Fetch job accepted",
		logger.String("job_id", jobID),
		logger.String("search_term", searchTerm),
		logger.String("year", year),
	)

	go func() {
		// The job outlives the HTTP request that started it.
		if _, err := o.Run(context.Background(), jobID, searchTerm, year); err != nil {
			o.logger.Error("Fetch job failed",
				logger.String("job_id", jobID),
				logger.Error(err),
			)
		}
	}()

	return jobID
}

// Run executes one fetch job to completion. The job ID must already be
// registered. The registry entry is removed on every exit path.
func (o *Orchestrator) Run(ctx context.Context, jobID, searchTerm, year string) (*domain.FetchResult, error) {
	start := time.Now()
	outcome := outcomeCompleted
	defer func() {
		o.registry.Remove(jobID)
		o.telemetry.RecordJobEnd(outcome, time.Since(start))
	}()

	o.publisher.FetchStarted(ctx, jobID, searchTerm)

	// The first page is the only unrecoverable call: without it there is
	// no result count and nothing to paginate.
	firstPage, err := o.catalog.Search(ctx, searchTerm, year, 1)
	if err != nil {
		outcome = outcomeFailed
		o.publisher.FetchError(ctx, jobID, fmt.Sprintf("Failed to fetch movies: %v", err))
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalResults := omdb.ParseTotalResults(firstPage.TotalResults)
	totalPages := (totalResults + pageSize - 1) / pageSize
	if totalPages > o.maxPages {
		totalPages = o.maxPages
	}
	if totalPages < 1 {
		totalPages = 1
	}

	o.logger.Info("Fetch job started",
		logger.String("job_id", jobID),
		logger.String("search_term", searchTerm),
		logger.Int("total_results", totalResults),
		logger.Int("total_pages", totalPages),
	)

	seen := make(map[string]struct{})
	newMovies := []domain.Movie{}

	collect := func(result *omdb.SearchResult) {
		for _, item := range result.Search {
			if item.ImdbID == "" {
				continue
			}
			if _, ok := seen[item.ImdbID]; ok {
				continue
			}
			seen[item.ImdbID] = struct{}{}

			if saved := o.resolveMovie(ctx, item.ImdbID); saved != nil {
				newMovies = append(newMovies, *saved)
			}
		}
	}

	// Page 1 is already in hand and its ids are always resolved, even when
	// a cancel lands while that search is in flight. The registry gates
	// pagination only.
	collect(firstPage)
	o.publisher.FetchProgress(ctx, jobID, searchTerm, StatusProcessing, len(seen), totalResults)

	for page := 2; page <= totalPages; page++ {
		if !o.registry.IsActive(jobID) {
			o.logger.Info("Fetch job cancelled, stopping pagination",
				logger.String("job_id", jobID),
				logger.Int("page", page),
			)
			outcome = outcomeCancelled
			break
		}

		result := attempt(o.logger, fmt.Sprintf("search page %d", page), nil,
			func() (*omdb.SearchResult, error) {
				return o.catalog.Search(ctx, searchTerm, year, page)
			})
		if result == nil {
			continue
		}

		collect(result)
		o.publisher.FetchProgress(ctx, jobID, searchTerm, StatusProcessing, len(seen), totalResults)
	}

	o.publisher.FetchProgress(ctx, jobID, searchTerm, StatusProcessing, len(seen), totalResults)
	o.publisher.FetchCompleted(ctx, jobID, searchTerm, len(newMovies))

	if len(newMovies) > 0 && o.cache != nil {
		attemptRun(o.logger, "invalidate cache", func() error {
			_, invErr := o.cache.DeleteByPattern(ctx, "movies_")
			return invErr
		})
	}

	o.logger.Info("Fetch job finished",
		logger.String("job_id", jobID),
		logger.String("outcome", outcome),
		logger.Int("discovered", len(seen)),
		logger.Int("new_movies", len(newMovies)),
	)

	return &domain.FetchResult{
		Success: true,
		Message: fmt.Sprintf("Fetched %s movies from %s", searchTerm, year),
		Count:   len(newMovies),
	}, nil
}

// resolveMovie turns one discovered imdb id into a stored movie. Returns the
// saved record when it is new to the catalog, nil otherwise. Every failure
// along the way is logged and swallowed: one broken record must not sink the
// rest of the job.
func (o *Orchestrator) resolveMovie(ctx context.Context, imdbID string) *domain.Movie {
	ctx, span := o.telemetry.StartSpan(ctx, "fetch.resolve_movie",
		attribute.String("imdb_id", imdbID),
	)
	defer span.End()

	existing := attempt(o.logger, "lookup "+imdbID, nil,
		func() (*domain.Movie, error) {
			return o.store.FindByImdbID(ctx, imdbID)
		})
	if existing != nil {
		o.telemetry.RecordMovieStored(false)
		return nil
	}

	detail := attempt(o.logger, "details "+imdbID, nil,
		func() (*omdb.MovieDetail, error) {
			return o.catalog.Details(ctx, imdbID)
		})
	if detail == nil {
		return nil
	}

	var inserted bool
	saved := attempt(o.logger, "save "+imdbID, nil,
		func() (*domain.Movie, error) {
			movie, ok, err := o.store.SaveIfAbsent(ctx, mapDetail(detail))
			inserted = ok
			return movie, err
		})
	if saved == nil {
		return nil
	}

	o.telemetry.RecordMovieStored(inserted)
	if !inserted {
		// A concurrent writer inserted the same imdb id between the
		// lookup and the save. Not ours to count.
		return nil
	}
	return saved
}

// mapDetail maps the external record onto the internal schema and stamps it.
func mapDetail(d *omdb.MovieDetail) *domain.Movie {
	now := time.Now().UTC()
	return &domain.Movie{
		Title:     d.Title,
		Year:      d.Year,
		Director:  d.Director,
		Plot:      d.Plot,
		Poster:    d.Poster,
		ImdbID:    d.ImdbID,
		Type:      d.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
