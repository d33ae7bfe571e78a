package models

import "time"

// DailyStats is the cached aggregate for one service day (key YYYY-MM-DD).
// Counters move only when an entry completes; skipped entries never touch
// them.
type DailyStats struct {
	Date          string    `json:"date"`
	TotalServed   int       `json:"total_served"`
	TotalPeople   int       `json:"total_people"`
	TotalWaitTime int       `json:"total_wait_time"`
	AvgWaitTime   int       `json:"avg_wait_time"`
	LastUpdated   time.Time `json:"last_updated"`
}

// MonthlyStats is the cached aggregate for one month (key YYYY-MM).
type MonthlyStats struct {
	Month         string `json:"month"`
	TotalServed   int    `json:"total_served"`
	TotalPeople   int    `json:"total_people"`
	TotalWaitTime int    `json:"total_wait_time"`
	AvgWaitTime   int    `json:"avg_wait_time"`
}
