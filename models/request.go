package models

// ScrapeRequest is the payload for POST /scrape.
type ScrapeRequest struct {
	// URLs is the ordered list of product pages to extract. Required.
	// Duplicates are allowed and each entry is processed independently.
	URLs []string `json:"urls" binding:"required,min=1,dive,required"`

	// MaxAge enables the record cache: a record extracted less than MaxAge
	// milliseconds ago is returned without fetching the page again.
	// Default: 0 (always fetch).
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL, if set, receives a "scrape.completed" event carrying the
	// full response once the batch finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}
