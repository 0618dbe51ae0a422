package domain

import "time"

// Driver represents a driver registered with the dispatch pool.
// Driver records are provisioned out of band; this service only reads them.
type Driver struct {
	ChatID    int64
	FullName  string
	Phone     string
	CarInfo   string
	CreatedAt time.Time
}
