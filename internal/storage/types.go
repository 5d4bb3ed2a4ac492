package storage

import "time"

// QuotaDay aggregates pages consumed per day/registration.
type QuotaDay struct {
	Date         string `json:"date"`
	Registration string `json:"registration"`
	Pages        int64  `json:"pages"`
}

// PrintJob is one print request with its billing breakdown.
type PrintJob struct {
	ID           string    `json:"id"`
	Registration string    `json:"registration"`
	Date         string    `json:"date"`
	RequestedAt  time.Time `json:"requested_at"`
	Requested    int64     `json:"requested"`
	Free         int64     `json:"free"`
	Billed       int64     `json:"billed"`
	// Cost is the billed amount formatted with two decimal places.
	Cost string `json:"cost"`
}
