// Package job defines the Job aggregate for the render queue: a durable
// record describing how to transform a source video through a pipeline of
// external processing stages, plus the state machine governing its status.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/job/id"
)

// SourceKind identifies what kind of input a job renders from.
type SourceKind string

const (
	// SourceTimelineProject is a timeline/project file requiring a render pass.
	SourceTimelineProject SourceKind = "timeline_project"
	// SourceVideoFile is a plain video file that can feed later stages directly.
	SourceVideoFile SourceKind = "video_file"
)

// UpscaleVariant selects which upscaling backend a job uses, if any.
type UpscaleVariant string

const (
	UpscaleNone    UpscaleVariant = "none"
	UpscaleAIAnime UpscaleVariant = "ai_anime"
	UpscaleAIPhoto UpscaleVariant = "ai_photo"
	UpscaleClassic UpscaleVariant = "classic"
)

// StageFlags selects which stages a pipeline composes for a job.
type StageFlags struct {
	UseTimelineRender bool
	UseUpscale        bool
	UseInterpolate    bool
	UpscaleVariant    UpscaleVariant
}

// Status is the Job state machine's sum type.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether a status will never transition again on its own.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned when an illegal status change is attempted.
var ErrInvalidTransition = errors.New("job: invalid status transition")

// validTransitions encodes the legal edges from spec: Failed and DeadLetter
// both only resume to Pending, under different preconditions enforced by
// the caller (retry budget), not by this table.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusRunning, StatusCancelled},
	StatusRunning:    {StatusCompleted, StatusFailed, StatusPaused, StatusCancelled},
	StatusPaused:     {StatusPending, StatusCancelled},
	StatusFailed:     {StatusPending, StatusDeadLetter},
	StatusDeadLetter: {StatusPending},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the canonical durable record for one render request.
type Job struct {
	mu sync.RWMutex

	ID     string
	Status Status

	SourceKind SourceKind
	SourcePath string
	OutputPath string

	IntermediatePath1 string
	IntermediatePath2 string

	Flags StageFlags

	ProgressPercent   float64
	CurrentFrame      int
	TotalFrames       *int
	CurrentStageLabel string

	FrameRate float64
	InFrame   *int
	OutFrame  *int

	TrackSelection    string
	StageSettingsBlob []byte

	RetryCount int
	MaxRetries int

	LastErrorMessage string
	LastErrorDetail  string

	OwnerProcessID string
	OwnerHostID    string

	CreatedAt     time.Time
	EnqueuedAt    time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	LastUpdatedAt time.Time

	OutputSizeBytes        *int64
	Intermediate1SizeBytes *int64
	Intermediate2SizeBytes *int64
}

// New creates a Pending job with a generated ID and the given required fields.
func New(sourceKind SourceKind, sourcePath, outputPath string, flags StageFlags) *Job {
	now := time.Now().UTC()
	if sourceKind == SourceTimelineProject {
		flags.UseTimelineRender = true
	}
	return &Job{
		ID:            id.Generate(),
		Status:        StatusPending,
		SourceKind:    sourceKind,
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		Flags:         flags,
		FrameRate:     30.0,
		MaxRetries:    3,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status, enforcing §3.2's legal
// edges and stamping the timestamps that accompany each transition.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	j.Status = status
	j.LastUpdatedAt = now

	switch status {
	case StatusRunning:
		j.StartedAt = now
	case StatusPending:
		j.OwnerProcessID = ""
		j.OwnerHostID = ""
	case StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled:
		j.CompletedAt = now
	}
	return nil
}

// Start claims the job for execution by the given owner.
func (j *Job) Start(ownerProcessID, ownerHostID, stageLabel string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusRunning); err != nil {
		return err
	}
	j.OwnerProcessID = ownerProcessID
	j.OwnerHostID = ownerHostID
	j.CurrentStageLabel = stageLabel
	return nil
}

// Complete marks the job finished successfully with its final output size.
func (j *Job) Complete(outputSizeBytes int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.ProgressPercent = 100
	j.OutputSizeBytes = &outputSizeBytes
	return nil
}

// Fail records a non-cancellation failure and either reschedules the job
// (Pending, retry budget remaining) or dead-letters it (budget exhausted).
// Running only transitions to Failed directly; Pending and DeadLetter are
// both reached from there, so every call steps through Failed first
// regardless of which branch it ends up taking.
func (j *Job) Fail(message, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.LastErrorMessage = message
	j.LastErrorDetail = detail
	j.RetryCount++
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	if j.RetryCount >= j.MaxRetries {
		return j.transitionLocked(StatusDeadLetter)
	}
	return j.transitionLocked(StatusPending)
}

// Pause stops a running job and parks it, preserving progress.
func (j *Job) Pause() error {
	return j.TransitionTo(StatusPaused)
}

// Resume returns a paused job to the queue.
func (j *Job) Resume() error {
	return j.TransitionTo(StatusPending)
}

// Cancel is valid from Pending, Running or Paused and is idempotent: calling
// it again once the job is already Cancelled is a silent no-op.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == StatusCancelled {
		return nil
	}
	return j.transitionLocked(StatusCancelled)
}

// Retry resets a Failed or DeadLetter job back to Pending with a clean slate.
func (j *Job) Retry() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusPending); err != nil {
		return err
	}
	j.RetryCount = 0
	j.LastErrorMessage = ""
	j.LastErrorDetail = ""
	j.ProgressPercent = 0
	j.CurrentFrame = 0
	j.CurrentStageLabel = ""
	return nil
}

// UpdateProgress is the hot-path, high-frequency progress update.
func (j *Job) UpdateProgress(percent float64, currentFrame int, stageLabel string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.ProgressPercent = percent
	j.CurrentFrame = currentFrame
	if stageLabel != "" {
		j.CurrentStageLabel = stageLabel
	}
	j.LastUpdatedAt = time.Now().UTC()
}

// RecordArtifactSize stores the produced size for the intermediate/output
// path a just-finished stage wrote to.
func (j *Job) RecordArtifactSize(path string, size int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch path {
	case j.IntermediatePath1:
		j.Intermediate1SizeBytes = &size
	case j.IntermediatePath2:
		j.Intermediate2SizeBytes = &size
	case j.OutputPath:
		j.OutputSizeBytes = &size
	}
}

// IsTerminal reports whether the job is in a state that will not be acted
// on again by the scheduler without an explicit operator action.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.Status {
	case StatusCompleted, StatusCancelled, StatusDeadLetter:
		return true
	default:
		return false
	}
}

// GetStatus returns the current status under the read lock.
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Clone returns a deep, independent copy safe for external reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	clone := *j
	clone.mu = sync.RWMutex{}

	if j.TotalFrames != nil {
		v := *j.TotalFrames
		clone.TotalFrames = &v
	}
	if j.InFrame != nil {
		v := *j.InFrame
		clone.InFrame = &v
	}
	if j.OutFrame != nil {
		v := *j.OutFrame
		clone.OutFrame = &v
	}
	if j.OutputSizeBytes != nil {
		v := *j.OutputSizeBytes
		clone.OutputSizeBytes = &v
	}
	if j.Intermediate1SizeBytes != nil {
		v := *j.Intermediate1SizeBytes
		clone.Intermediate1SizeBytes = &v
	}
	if j.Intermediate2SizeBytes != nil {
		v := *j.Intermediate2SizeBytes
		clone.Intermediate2SizeBytes = &v
	}
	if j.StageSettingsBlob != nil {
		blob := make([]byte, len(j.StageSettingsBlob))
		copy(blob, j.StageSettingsBlob)
		clone.StageSettingsBlob = blob
	}
	return &clone
}
