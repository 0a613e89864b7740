package types

import "time"

type JobName string

const (
	JobQuotaSweep       JobName = "quota-sweep"
	JobPastDueSuspend   JobName = "suspend-past-due"
	JobDunning          JobName = "dunning"
	JobMetadataBackfill JobName = "backfill-metadata"
	JobDisputeAlerts    JobName = "dispute-alerts"
)

// JobItemError records one entity a sweep could not handle.
type JobItemError struct {
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}

// JobSummary is returned by every billing job run.
type JobSummary struct {
	Job        JobName        `json:"job"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Visited    int            `json:"visited"`
	Changed    int            `json:"changed"`
	Skipped    int            `json:"skipped"`
	Errors     []JobItemError `json:"errors"`
}

func NewJobSummary(job JobName, now time.Time) *JobSummary {
	return &JobSummary{Job: job, StartedAt: now, Errors: []JobItemError{}}
}

func (s *JobSummary) Fail(entityID string, err error) {
	s.Errors = append(s.Errors, JobItemError{EntityID: entityID, Error: err.Error()})
}
