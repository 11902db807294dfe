package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sillage/models"
)

// Info returns a handler describing the service and its endpoints.
func Info() gin.HandlerFunc {
	resp := models.InfoResponse{
		Name:        "sillage",
		Version:     Version,
		Description: "Extracts structured fragrance data from product pages",
		Endpoints: map[string]string{
			"POST /scrape":        "scrape a batch of product page URLs",
			"POST /api/v1/scrape": "same as POST /scrape",
			"GET /api/v1/health":  "service health and browser pool usage",
		},
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}
