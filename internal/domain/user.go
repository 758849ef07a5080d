package domain

import "time"

// Role represents a caller's capability, supplied by the identity provider.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// User represents a passenger, driver or admin account.
type User struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	Role      Role
	CreatedAt time.Time
}
