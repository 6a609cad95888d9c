package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionPrefix starts every session directory name.
const SessionPrefix = "analysis_"

const sessionLayout = "20060102_150405"

// Session is a timestamped batch of contracts analysed together.
// Membership is fixed once the session's analysis run completes.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Dir       string    `json:"dir,omitempty" yaml:"-"`
}

// SessionID names a session created at t.
func SessionID(t time.Time) string {
	return SessionPrefix + t.Format(sessionLayout)
}

// ParseSessionID recovers the creation time from a session name.
func ParseSessionID(id string) (time.Time, error) {
	if !strings.HasPrefix(id, SessionPrefix) {
		return time.Time{}, fmt.Errorf("session %q: missing %q prefix", id, SessionPrefix)
	}
	t, err := time.ParseInLocation(sessionLayout, strings.TrimPrefix(id, SessionPrefix), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %q: %w", id, err)
	}
	return t, nil
}

// IsSessionID reports whether name is a well-formed session name.
func IsSessionID(name string) bool {
	_, err := ParseSessionID(name)
	return err == nil
}

// RepairOutcome classifies one regeneration attempt.
type RepairOutcome string

const (
	OutcomeValid             RepairOutcome = "valid"
	OutcomeDeclined          RepairOutcome = "declined"
	OutcomeRepaired          RepairOutcome = "repaired"
	OutcomeFailed            RepairOutcome = "failed"
	OutcomeMissingDependency RepairOutcome = "missing_dependency"
)

// RepairAttempt records one regeneration decision for a diagram.
type RepairAttempt struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Fingerprint string        `json:"fingerprint"`
	Kind        Kind          `json:"kind"`
	Outcome     RepairOutcome `json:"outcome"`
	Detail      string        `json:"detail,omitempty"`
	AttemptedAt time.Time     `json:"attempted_at"`
}
