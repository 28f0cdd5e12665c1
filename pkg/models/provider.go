package models

import "time"

// ProviderHealth is the rolling health record for one provider.
// ConsecutiveFailures decrements on success (floor zero) and increments on
// failure; it is never reset outright.
type ProviderHealth struct {
	Provider            string    `json:"provider"`
	ConsecutiveFailures uint      `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
	HourlyUsed          int       `json:"hourly_used"`
	DailyUsed           int       `json:"daily_used"`
}
