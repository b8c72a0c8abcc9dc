package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karlosatvar19/movies-app/internal/cache"
	"github.com/karlosatvar19/movies-app/internal/domain"
	"github.com/karlosatvar19/movies-app/internal/logger"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// movieListResponse is the payload for listing and search endpoints.
type movieListResponse struct {
	Movies     []domain.Movie `json:"movies"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
	TotalItems int            `json:"totalItems"`
	Total      int            `json:"total"`
}

// listMovies handles GET /api/v1/movies.
// An optional search query narrows the listing.
func (r *Router) listMovies(c *gin.Context) {
	page, limit := pagination(c)

	if query := normalizeQuery(c.Query("search")); query != "" {
		r.serveSearch(c, query, page, limit)
		return
	}

	skip := (page - 1) * limit
	cacheKey := fmt.Sprintf("movies_findAll_%d_%d", skip, limit)

	var cached movieListResponse
	if r.cacheGet(c, cacheKey, "list", &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	ctx := c.Request.Context()
	movies, err := r.movies.FindAll(ctx, skip, limit)
	if err != nil {
		r.logger.Error("Failed to list movies", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve movies"})
		return
	}
	count, err := r.movies.Count(ctx)
	if err != nil {
		r.logger.Error("Failed to count movies", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve movies"})
		return
	}

	resp := buildListResponse(movies, page, limit, count)
	r.cacheSet(c, cacheKey, resp, cache.ListTTL)
	c.JSON(http.StatusOK, resp)
}

// searchMovies handles GET /api/v1/movies/search.
func (r *Router) searchMovies(c *gin.Context) {
	query := normalizeQuery(c.Query("query"))
	if query == "" {
		query = normalizeQuery(c.Query("q"))
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query is required"})
		return
	}

	page, limit := pagination(c)
	r.serveSearch(c, query, page, limit)
}

func (r *Router) serveSearch(c *gin.Context, query string, page, limit int) {
	skip := (page - 1) * limit
	cacheKey := fmt.Sprintf("movies_search_%s_%d_%d", query, skip, limit)

	var cached movieListResponse
	if r.cacheGet(c, cacheKey, "search", &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	ctx := c.Request.Context()
	movies, err := r.movies.Search(ctx, query, skip, limit)
	if err != nil {
		r.logger.Error("Failed to search movies",
			logger.String("query", query),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search movies"})
		return
	}
	count, err := r.movies.CountSearch(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count search results",
			logger.String("query", query),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search movies"})
		return
	}

	resp := buildListResponse(movies, page, limit, count)
	r.cacheSet(c, cacheKey, resp, cache.SearchTTL)
	c.JSON(http.StatusOK, resp)
}

// getMovie handles GET /api/v1/movies/:id.
func (r *Router) getMovie(c *gin.Context) {
	id := c.Param("id")

	movie, err := r.movies.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
			return
		}
		r.logger.Error("Failed to get movie",
			logger.String("id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve movie"})
		return
	}

	c.JSON(http.StatusOK, movie)
}

func (r *Router) cacheGet(c *gin.Context, key, endpoint string, dest *movieListResponse) bool {
	if r.cache == nil {
		return false
	}
	hit := r.cache.Get(c.Request.Context(), key, dest)
	if r.telemetry != nil {
		r.telemetry.RecordCacheLookup(endpoint, hit)
	}
	return hit
}

func (r *Router) cacheSet(c *gin.Context, key string, resp movieListResponse, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(c.Request.Context(), key, resp, ttl); err != nil {
		r.logger.Warn("Failed to cache response",
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

func buildListResponse(movies []domain.Movie, page, limit, count int) movieListResponse {
	if movies == nil {
		movies = []domain.Movie{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (count + limit - 1) / limit
	}
	return movieListResponse{
		Movies:     movies,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		TotalItems: count,
		Total:      len(movies),
	}
}

// pagination reads page and limit query params with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// normalizeQuery collapses internal whitespace and trims the query.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
