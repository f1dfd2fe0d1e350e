package domain

import "time"

// Technician is a directory user able to perform interventions.
type Technician struct {
	ID              string
	Name            string
	Email           string
	IsTechnician    bool
	Available       bool
	SpecialtyIDs    []string
	CurrentLocation string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasSpecialty reports whether the technician carries the given specialty.
func (t *Technician) HasSpecialty(id string) bool {
	for _, s := range t.SpecialtyIDs {
		if s == id {
			return true
		}
	}
	return false
}

// TechnicianStats aggregates intervention counts for a technician.
type TechnicianStats struct {
	InterventionCount    int
	CurrentInterventions int
}
