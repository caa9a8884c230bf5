package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State          string           `json:"state"`
	Score          float64          `json:"score"`
	HasData        bool             `json:"has_data"`
	AgeSeconds     int64            `json:"age_seconds"`
	SchedulerState string           `json:"scheduler_state"`
	Diagnostics    []DiagnosticHint `json:"diagnostics"`
}

// CommandRequest is the body of POST /api/v1/command.
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse is the reply to POST /api/v1/command.
type CommandResponse struct {
	Reply string `json:"reply"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
