package models

// StatusResponse is the response for GET /.
type StatusResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// ClientErrorResponse is returned for malformed, unauthorized or throttled requests.
type ClientErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Example string `json:"example,omitempty"`
}

// NotFoundResponse is returned when a scrape produced no aggregate at all.
type NotFoundResponse struct {
	Error string `json:"error"`
}

// ServerErrorResponse is returned when scraping fails unexpectedly.
type ServerErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string   `json:"status"` // "healthy" or "degraded"
	Uptime   string   `json:"uptime"`
	Sessions Sessions `json:"sessions"`
	Sources  []string `json:"sources"`
	Version  string   `json:"version"`
}

// Sessions reports how many browser sessions are currently live.
type Sessions struct {
	Active int `json:"active"`
	Limit  int `json:"limit"`
}
