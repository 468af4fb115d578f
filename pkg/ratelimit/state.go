// Package ratelimit tracks an upstream's remaining request quota and gates
// requests before the quota runs out.
//
// Quota-metered APIs (api-sports among them) report the remaining daily
// allowance in response headers. The tracker records that value after every
// response and refuses further requests once it falls below a critical
// threshold, so the last few calls are not burnt on retries.
package ratelimit

import (
	"time"
)

// Thresholds for quota decisions.
type Thresholds struct {
	// Critical blocks all requests when remaining quota falls below this value.
	Critical int

	// Warning logs and counts requests when remaining quota falls below this value.
	Warning int

	// Healthy is the level at or above which the quota is considered healthy.
	Healthy int
}

// DefaultThresholds returns thresholds suited to a daily quota of ~100 requests.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: 5,
		Warning:  20,
		Healthy:  50,
	}
}

// QuotaState is the last known quota of one upstream.
type QuotaState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window's total allowance; 0 when the upstream doesn't say.
	Limit int `json:"limit"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= Thresholds.Healthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge at now.
func (s *QuotaState) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be refused.
func (s *QuotaState) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining < th.Critical
}

// NeedsWarning returns true if the quota is low but not yet critical.
func (s *QuotaState) NeedsWarning(th Thresholds) bool {
	return s.Remaining < th.Warning && !s.NeedsCriticalBlock(th)
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *QuotaState) UpdateHealth(th Thresholds) {
	s.IsHealthy = s.Remaining >= th.Healthy
}
