package models

// ScrapeResponse is the response for POST /scrape.
//
// Results and Errors are two independent streams, each ordered by the
// position of its URL in the request.
type ScrapeResponse struct {
	Results []*FragranceRecord `json:"results"`
	Errors  []ScrapeError      `json:"errors"`
}

// ScrapeError reports why a single URL produced no record.
type ScrapeError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewScrapeError builds the per-URL error entry from a pipeline error.
func NewScrapeError(url string, err error) ScrapeError {
	return ScrapeError{
		URL:   url,
		Error: err.Error(),
		Code:  CodeOf(err),
	}
}

// ErrorResponse is returned for requests rejected before any URL is processed.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	FetchMode string    `json:"fetch_mode"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	LivePages   int `json:"live_pages"`
	ActivePages int `json:"active_pages"`
}

// InfoResponse is the response for GET /.
type InfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}
