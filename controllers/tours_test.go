package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadiusForConvertsDistanceToRadians(t *testing.T) {
	assert.InDelta(t, 100/3963.2, RadiusFor(100, "mi"), 1e-9)
	assert.InDelta(t, 100/6378.1, RadiusFor(100, "km"), 1e-9)
	// anything that is not miles falls back to kilometers
	assert.InDelta(t, 100/6378.1, RadiusFor(100, "furlong"), 1e-9)
}

func TestParseLatLng(t *testing.T) {
	lat, lng, appErr := parseLatLng("34.111745,-118.113491")
	require.Nil(t, appErr)
	assert.InDelta(t, 34.111745, lat, 1e-9)
	assert.InDelta(t, -118.113491, lng, 1e-9)

	for _, bad := range []string{"", "34.1", "34.1,-118.1,9", "north,west"} {
		_, _, appErr := parseLatLng(bad)
		assert.NotNil(t, appErr, "input %q", bad)
	}
}

func TestAliasTopToursRewritesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen url.Values
	r := gin.New()
	r.GET("/top-5-cheap", AliasTopTours, func(c *gin.Context) {
		seen = c.Request.URL.Query()
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/top-5-cheap?limit=50&difficulty=easy", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", seen.Get("limit"))
	assert.Equal(t, "-ratingsAverage,price", seen.Get("sort"))
	assert.Equal(t, "name,price,ratingsAverage,description,difficulty", seen.Get("fields"))
	// client filters outside the alias keys survive
	assert.Equal(t, "easy", seen.Get("difficulty"))
}
