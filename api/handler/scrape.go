// Package handler implements the HTTP handlers of the scrape API.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sillage/api/middleware"
	"github.com/use-agent/sillage/models"
	"github.com/use-agent/sillage/webhook"
)

// BatchRunner processes a batch of product URLs. *batch.Runner satisfies it.
type BatchRunner interface {
	RunCached(ctx context.Context, urls []string, maxAge time.Duration) *models.ScrapeResponse
}

// Scrape returns a handler for POST /scrape.
//
// The request is rejected with 400 only when the body cannot be used at
// all. Once the URLs are accepted the response is always 200: pages that
// fail to fetch or extract are listed in "errors" beside the records.
func Scrape(runner BatchRunner, webhooks *webhook.Sender, maxURLs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if msg := validateURLs(req.URLs, maxURLs); msg != "" {
			badRequest(c, msg)
			return
		}

		resp := runner.RunCached(c.Request.Context(), req.URLs,
			time.Duration(req.MaxAge)*time.Millisecond)

		if req.WebhookURL != "" && webhooks != nil {
			webhooks.DeliverAsync(req.WebhookURL,
				webhook.NewEvent(webhook.EventScrapeCompleted, c.GetString(middleware.RequestIDContextKey), resp))
		}

		c.JSON(http.StatusOK, resp)
	}
}

// validateURLs returns a message describing the first problem with urls,
// or "" when every URL is an absolute http(s) URL.
func validateURLs(urls []string, maxURLs int) string {
	if len(urls) == 0 {
		return "urls must contain at least one URL"
	}
	if maxURLs > 0 && len(urls) > maxURLs {
		return fmt.Sprintf("maximum %d URLs per request, got %d", maxURLs, len(urls))
	}
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("urls[%d]: %q is not an absolute http(s) URL", i, raw)
		}
	}
	return ""
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeInvalidInput,
			Message: message,
		},
	})
}
