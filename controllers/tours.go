package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// Earth radii used to convert a surface distance to radians for
// $centerSphere queries.
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
)

// TourController serves the tour routes that go beyond generic CRUD:
// aliases, aggregations and geo queries.
type TourController struct {
	Store *models.TourStore
}

// PrepareTour fills server-owned fields on a new tour document.
func PrepareTour(_ *gin.Context, t *models.Tour) error {
	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now().UTC()
	return nil
}

// AliasTopTours rewrites the query so the generic list handler returns the
// five best-rated cheap tours.
func AliasTopTours(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,description,difficulty")
	c.Request.URL.RawQuery = q.Encode()
	c.Next()
}

// Stats returns per-difficulty aggregates over well-rated tours.
func (t *TourController) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := t.Store.Stats(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "fetched successfully",
		"data":    stats,
	})
}

// MonthlyPlan returns tour starts bucketed per month of a year.
func (t *TourController) MonthlyPlan(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		_ = c.Error(utils.ValidationError("please provide a valid year"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	plan, err := t.Store.MonthlyPlan(ctx, year)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "fetched successfully",
		"results": len(plan),
		"data":    plan,
	})
}

// ToursWithin lists tours starting within :distance of :latlng. The
// distance is a required route segment; the radius derives from it and the
// unit, never from anything implicit.
func (t *TourController) ToursWithin(c *gin.Context) {
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil {
		_ = c.Error(utils.ValidationError("please provide a valid distance"))
		return
	}
	lat, lng, appErr := parseLatLng(c.Param("latlng"))
	if appErr != nil {
		_ = c.Error(appErr)
		return
	}

	radius := RadiusFor(distance, c.Param("unit"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	tours, err := t.Store.Within(ctx, lng, lat, radius)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "fetched successfully",
		"results": len(tours),
		"data":    tours,
	})
}

// Distances returns each tour's distance from :latlng in the given unit.
func (t *TourController) Distances(c *gin.Context) {
	lat, lng, appErr := parseLatLng(c.Param("latlng"))
	if appErr != nil {
		_ = c.Error(appErr)
		return
	}

	multiplier := 0.001 // meters to km
	if c.Param("unit") == "mi" {
		multiplier = 0.000621371
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	distances, err := t.Store.Distances(ctx, lng, lat, multiplier)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "fetched successfully",
		"results": len(distances),
		"data":    distances,
	})
}

// RadiusFor converts a surface distance in the given unit to the radians
// $centerSphere expects.
func RadiusFor(distance float64, unit string) float64 {
	if unit == "mi" {
		return distance / earthRadiusMiles
	}
	return distance / earthRadiusKm
}

func parseLatLng(latlng string) (lat, lng float64, err *utils.AppError) {
	parts := strings.Split(latlng, ",")
	if len(parts) != 2 {
		return 0, 0, utils.ValidationError("please provide lat and lng in the format lat,lng")
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, utils.ValidationError("please provide lat and lng in the format lat,lng")
	}
	return lat, lng, nil
}
