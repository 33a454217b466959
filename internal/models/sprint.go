package models

import "time"

// SprintStatus is the lifecycle state of an iteration.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// Sprint is an iteration container. Only completed sprints contribute to
// velocity history; active and planned sprints remain queryable for
// burndown and flow diagrams.
type Sprint struct {
	ID        string
	ProjectID string
	Key       string
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
	Status    SprintStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Days returns the inclusive day count of the sprint window.
func (s *Sprint) Days() int {
	start := s.StartDate.Truncate(24 * time.Hour)
	end := s.EndDate.Truncate(24 * time.Hour)
	return int(end.Sub(start).Hours()/24) + 1
}
