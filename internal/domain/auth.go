package domain

import "time"

// Role enumerates the callers allowed on the intervention API.
type Role string

const (
	RoleDispatcher Role = "DISPATCHER"
	RoleTechnician Role = "TECHNICIAN"
	RoleManager    Role = "MANAGER"
	RoleSystem     Role = "SYSTEM"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
