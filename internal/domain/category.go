package domain

import "time"

// Category classifies tickets. Names are stored in plaintext.
type Category struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
