package api

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

func parseListFilter(c *gin.Context) (domain.QueryFilter, error) {
	filter := domain.QueryFilter{Limit: DefaultLimit}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, &domain.InvalidQueryError{Field: "limit", Reason: "must be a positive integer"}
		}
		filter.Limit = min(n, MaxLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, &domain.InvalidQueryError{Field: "offset", Reason: "must be a non-negative integer"}
		}
		filter.Offset = n
	}

	var err error
	if filter.MinMagnitude, err = optionalFloat(c, "minMagnitude"); err != nil {
		return filter, err
	}
	if filter.MaxMagnitude, err = optionalFloat(c, "maxMagnitude"); err != nil {
		return filter, err
	}
	if v := c.Query("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			return filter, err
		}
		filter.Since = since
	}
	return filter, nil
}

func parseNearby(c *gin.Context) (lat, lon, radius float64, err error) {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		return 0, 0, 0, &domain.InvalidQueryError{Field: "lat/lng", Reason: "latitude and longitude are required"}
	}
	if lat, err = finiteFloat("lat", c.Query("lat")); err != nil {
		return 0, 0, 0, err
	}
	if lon, err = finiteFloat("lng", c.Query("lng")); err != nil {
		return 0, 0, 0, err
	}
	radius = DefaultRadius
	if v := c.Query("radius"); v != "" {
		if radius, err = finiteFloat("radius", v); err != nil {
			return 0, 0, 0, err
		}
	}
	return lat, lon, radius, nil
}

func optionalFloat(c *gin.Context, name string) (*float64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	f, err := finiteFloat(name, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func finiteFloat(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &domain.InvalidQueryError{Field: name, Reason: "must be a number"}
	}
	return f, nil
}

// parseSince accepts epoch milliseconds or an RFC 3339 timestamp.
func parseSince(v string) (int64, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, &domain.InvalidQueryError{Field: "since", Reason: "must be epoch milliseconds or RFC 3339"}
	}
	return t.UnixMilli(), nil
}
