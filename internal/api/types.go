// Package api provides the HTTP control-plane surface fronting the
// JobController: handlers, middleware, routes, and DTOs separated from
// domain types.
package api

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// SourceKind is either "timeline_project" or "video_file".
	SourceKind string `json:"source_kind" validate:"required,oneof=timeline_project video_file"`
	// SourcePath is the path to the input file.
	SourcePath string `json:"source_path" validate:"required"`
	// OutputPath is where the final artifact is written.
	OutputPath string `json:"output_path" validate:"required"`

	UseTimelineRender bool   `json:"use_timeline_render"`
	UseUpscale        bool   `json:"use_upscale"`
	UpscaleVariant    string `json:"upscale_variant,omitempty" validate:"omitempty,oneof=none ai_anime ai_photo classic"`
	UseInterpolate    bool   `json:"use_interpolate"`

	TrackSelection string `json:"track_selection,omitempty"`
	InFrame        *int   `json:"in_frame,omitempty"`
	OutFrame       *int   `json:"out_frame,omitempty"`
	FrameRate      float64 `json:"frame_rate,omitempty"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	ProgressPercent   float64 `json:"progress_percent"`
	CurrentFrame      int     `json:"current_frame"`
	CurrentStageLabel string  `json:"current_stage_label,omitempty"`
	RetryCount        int     `json:"retry_count"`
	MaxRetries        int     `json:"max_retries"`
	LastErrorMessage  string  `json:"last_error_message,omitempty"`
}

// StatsResponse is the HTTP response for GET /stats.
type StatsResponse struct {
	Pending       int  `json:"pending"`
	Running       int  `json:"running"`
	Paused        int  `json:"paused"`
	Completed     int  `json:"completed"`
	Failed        int  `json:"failed"`
	DeadLetter    int  `json:"dead_letter"`
	Cancelled     int  `json:"cancelled"`
	IsQueuePaused bool `json:"is_queue_paused"`
}

// ProgressEventResponse is one SSE payload delivered on GET /jobs/{id}/events.
type ProgressEventResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	CurrentFrame    int     `json:"current_frame"`
	StageLabel      string  `json:"stage_label,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
