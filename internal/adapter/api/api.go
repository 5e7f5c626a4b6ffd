// Package api serves the earthquake catalogue as JSON over HTTP.
//
// Every response uses the same envelope: {"success": bool, "data": ...} on
// success and {"success": false, "error": "..."} on failure.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

const (
	DefaultLimit  = 50
	MaxLimit      = 500
	DefaultRadius = 100.0
)

// Queries is the read side the handlers depend on. *query.Service satisfies it.
type Queries interface {
	List(ctx context.Context, filter domain.QueryFilter) ([]domain.Earthquake, int, error)
	Latest(ctx context.Context) (domain.Earthquake, error)
	ByID(ctx context.Context, id string) (domain.Earthquake, error)
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]domain.NearbyEarthquake, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success      bool        `json:"success"`
	Data         any         `json:"data,omitempty"`
	Error        string      `json:"error,omitempty"`
	Pagination   *Pagination `json:"pagination,omitempty"`
	UserLocation *Point      `json:"userLocation,omitempty"`
	Radius       *float64    `json:"radius,omitempty"`
}

// Pagination describes the page returned by the list endpoint.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Point echoes the center of a nearby search.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Handler holds the dependencies of the earthquake routes.
type Handler struct {
	queries Queries
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(q Queries, logger *slog.Logger) *Handler {
	return &Handler{queries: q, logger: logger}
}

// NewRouter builds a gin engine with the earthquake routes under /api.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	h.Register(r.Group("/api"))
	return r
}

// Register mounts the earthquake routes on r. Static segments are registered
// before /:id so "latest", "nearby", and "stats" never reach the id lookup.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/earthquakes")
	g.GET("", h.List)
	g.GET("/latest", h.Latest)
	g.GET("/nearby", h.Nearby)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.ByID)
}

func (h *Handler) List(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	quakes, total, err := h.queries.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	if quakes == nil {
		quakes = []domain.Earthquake{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success:    true,
		Data:       quakes,
		Pagination: &Pagination{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	})
}

func (h *Handler) Latest(c *gin.Context) {
	eq, err := h.queries.Latest(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "no earthquakes found")
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: eq})
}

func (h *Handler) Nearby(c *gin.Context) {
	lat, lon, radius, err := parseNearby(c)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	quakes, err := h.queries.Nearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	if quakes == nil {
		quakes = []domain.NearbyEarthquake{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success:      true,
		Data:         quakes,
		UserLocation: &Point{Latitude: lat, Longitude: lon},
		Radius:       &radius,
	})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.queries.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: stats})
}

func (h *Handler) ByID(c *gin.Context) {
	eq, err := h.queries.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "earthquake not found")
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: eq})
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported with a generic message.
func (h *Handler) writeError(c *gin.Context, err error, notFoundMsg string) {
	var invalid *domain.InvalidQueryError
	var unavailable *domain.StoreUnavailableError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, Envelope{Error: invalid.Error()})
	case errors.Is(err, domain.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		c.JSON(http.StatusNotFound, Envelope{Error: notFoundMsg})
	case errors.As(err, &unavailable):
		h.logger.Error("store unavailable", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, Envelope{Error: "store unavailable"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, Envelope{Error: "internal server error"})
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
