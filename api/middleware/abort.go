// Package middleware holds the gin middleware guarding the scrape API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/sillage/models"
)

// abort stops the chain with the standard error envelope.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: message},
	})
}
