package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/domain"
	"github.com/karlosatvar19/movies-app/internal/logger"
	"github.com/karlosatvar19/movies-app/internal/sse"
)

type stubMovies struct {
	movies     []domain.Movie
	count      int
	byID       map[string]*domain.Movie
	pingErr    error
	findCalls  int
	searchLast string
}

func (s *stubMovies) FindByID(_ context.Context, id string) (*domain.Movie, error) {
	if m, ok := s.byID[id]; ok {
		return m, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubMovies) FindAll(_ context.Context, _, _ int) ([]domain.Movie, error) {
	s.findCalls++
	return s.movies, nil
}

func (s *stubMovies) Search(_ context.Context, query string, _, _ int) ([]domain.Movie, error) {
	s.searchLast = query
	return s.movies, nil
}

func (s *stubMovies) Count(context.Context) (int, error) {
	return s.count, nil
}

func (s *stubMovies) CountSearch(context.Context, string) (int, error) {
	return s.count, nil
}

func (s *stubMovies) Ping(context.Context) error { return s.pingErr }

type stubJobs struct {
	lastTerm string
	lastYear string
	jobID    string
}

func (s *stubJobs) Normalize(term, year string) (string, string) {
	term = strings.Join(strings.Fields(term), " ")
	if term == "" {
		term = config.DefaultSearchTerm
	}
	if strings.TrimSpace(year) == "" {
		year = config.DefaultYear
	}
	return term, strings.TrimSpace(year)
}

func (s *stubJobs) StartJob(_ context.Context, term, year string) string {
	s.lastTerm, s.lastYear = term, year
	return s.jobID
}

type stubRegistry struct {
	active    []string
	cancelled map[string]bool
}

func (s *stubRegistry) ActiveJobs() []string { return s.active }

func (s *stubRegistry) Cancel(jobID string) bool { return s.cancelled[jobID] }

type memoryCache struct {
	entries map[string][]byte
	sets    []string
}

func (m *memoryCache) Get(_ context.Context, key string, dest any) bool {
	data, ok := m.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	m.sets = append(m.sets, key)
	return nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }

type testDeps struct {
	movies   *stubMovies
	jobs     *stubJobs
	registry *stubRegistry
	cache    *memoryCache
}

func newTestRouter(deps testDeps) http.Handler {
	if deps.movies == nil {
		deps.movies = &stubMovies{}
	}
	if deps.jobs == nil {
		deps.jobs = &stubJobs{jobID: "7f9c35c8-0000-0000-0000-000000000000"}
	}
	if deps.registry == nil {
		deps.registry = &stubRegistry{}
	}
	if deps.cache == nil {
		deps.cache = &memoryCache{}
	}

	cfg := &config.Config{}
	log := logger.NewNop()
	r := NewRouter(cfg, log, deps.movies, deps.cache, deps.jobs, deps.registry, sse.NewBroker(log), nil)
	return r.SetupRoutes()
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListMovies(t *testing.T) {
	movies := &stubMovies{
		movies: []domain.Movie{{ID: "1", Title: "Space Sweepers", ImdbID: "tt1"}},
		count:  11,
	}
	cache := &memoryCache{}
	handler := newTestRouter(testDeps{movies: movies, cache: cache})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies?page=1&limit=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(2), body["totalPages"])
	assert.Equal(t, float64(11), body["totalItems"])
	assert.Equal(t, float64(1), body["total"])

	// The response was cached under the listing key.
	assert.Contains(t, cache.sets, "movies_findAll_0_10")
}

func TestListMovies_CacheHitSkipsRepository(t *testing.T) {
	movies := &stubMovies{count: 1}
	cache := &memoryCache{}
	handler := newTestRouter(testDeps{movies: movies, cache: cache})

	// First request populates the cache, second is served from it.
	doRequest(t, handler, http.MethodGet, "/api/v1/movies", nil)
	require.Equal(t, 1, movies.findCalls)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, movies.findCalls)
}

func TestListMovies_SearchParamDelegatesToSearch(t *testing.T) {
	movies := &stubMovies{}
	cache := &memoryCache{}
	handler := newTestRouter(testDeps{movies: movies, cache: cache})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies?search=star++wars", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "star wars", movies.searchLast)
	assert.Contains(t, cache.sets, "movies_search_star wars_0_10")
}

func TestSearchMovies_RequiresQuery(t *testing.T) {
	handler := newTestRouter(testDeps{})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchMovies_AcceptsShortParam(t *testing.T) {
	movies := &stubMovies{}
	handler := newTestRouter(testDeps{movies: movies})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies/search?q=dune", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dune", movies.searchLast)
}

func TestGetMovie(t *testing.T) {
	movies := &stubMovies{
		byID: map[string]*domain.Movie{
			"abc": {ID: "abc", Title: "Space Sweepers", ImdbID: "tt1"},
		},
	}
	handler := newTestRouter(testDeps{movies: movies})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Space Sweepers", body["title"])

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/movies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartFetch_EmptyBodyUsesDefaults(t *testing.T) {
	jobs := &stubJobs{jobID: "job-42"}
	handler := newTestRouter(testDeps{jobs: jobs})

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/movies/fetch", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "job-42", body["requestId"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Started fetching space movies for year 2020", body["message"])
	assert.Equal(t, config.DefaultSearchTerm, jobs.lastTerm)
	assert.Equal(t, config.DefaultYear, jobs.lastYear)
}

func TestStartFetch_WithBody(t *testing.T) {
	jobs := &stubJobs{jobID: "job-43"}
	handler := newTestRouter(testDeps{jobs: jobs})

	payload := []byte(`{"searchTerm": "  star  trek ", "year": "1995"}`)
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/movies/fetch", payload)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Started fetching star trek movies for year 1995", body["message"])
	assert.Equal(t, "star trek", jobs.lastTerm)
	assert.Equal(t, "1995", jobs.lastYear)
}

func TestStartFetch_MalformedBody(t *testing.T) {
	handler := newTestRouter(testDeps{})

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/movies/fetch", []byte(`{broken`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveJobs(t *testing.T) {
	registry := &stubRegistry{active: []string{"job-1", "job-2"}}
	handler := newTestRouter(testDeps{registry: registry})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/movies/fetch/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.ElementsMatch(t, []any{"job-1", "job-2"}, body["activeJobs"])
}

func TestCancelFetch(t *testing.T) {
	registry := &stubRegistry{cancelled: map[string]bool{"job-1": true}}
	handler := newTestRouter(testDeps{registry: registry})

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/movies/fetch/cancel/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Job job-1 cancelled successfully", body["message"])

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/movies/fetch/cancel/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No active fetch job found with ID unknown", body["message"])
}

func TestHealth(t *testing.T) {
	handler := newTestRouter(testDeps{})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth_DegradedOnDatabaseFailure(t *testing.T) {
	movies := &stubMovies{pingErr: errors.New("connection refused")}
	handler := newTestRouter(testDeps{movies: movies})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
}
