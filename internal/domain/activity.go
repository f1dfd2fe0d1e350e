package domain

import "time"

// Activity is a to-do scheduled on the ticketing host for a user.
type Activity struct {
	ID        string
	UserID    string
	TicketID  string
	Summary   string
	Note      string
	DueAt     time.Time
	CreatedAt time.Time
}
