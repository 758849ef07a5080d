package domain

import "time"

// Setting is a hot-reloadable configuration value stored in the database.
type Setting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}
