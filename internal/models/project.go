package models

import "time"

// Project is the container for work items and sprints. Key is the prefix
// used for item keys ("PROJ" -> "PROJ-1"), and NextItemNum is the
// project-scoped counter behind those keys. The counter is only ever
// advanced through the store's atomic allocation, never read-then-written.
type Project struct {
	ID          string
	Key         string
	Name        string
	Description string
	NextItemNum int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
