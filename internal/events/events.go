// Package events defines the progress/status-change event types subscribers
// receive and the broker that fans them out, dropping to slow subscribers
// rather than ever blocking the scheduler.
package events

import (
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
)

// ProgressEvent is an immutable snapshot of one job's progress or a status
// change, per the progress event field list.
type ProgressEvent struct {
	JobID              string
	Status             job.Status
	ProgressPercent    float64
	CurrentFrame       int
	TotalFrames        *int
	ElapsedTime        *time.Duration
	EstimatedRemaining *time.Duration
	StageLabel         string
	ErrorMessage       string
}

// QueueStatusEvent reports a StartQueue/StopQueue toggle.
type QueueStatusEvent struct {
	Paused bool
}
