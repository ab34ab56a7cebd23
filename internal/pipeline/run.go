// Package pipeline sequences provisioning, propagation checks and credential
// delivery for one batch of new hires.
package pipeline

import (
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
)

// RecordStatus tracks one hire through the run.
type RecordStatus string

const (
	StatusPending       RecordStatus = "pending"
	StatusCreated       RecordStatus = "created"
	StatusExists        RecordStatus = "exists"
	StatusFailed        RecordStatus = "failed"
	StatusVerified      RecordStatus = "verified"
	StatusUnverified    RecordStatus = "unverified"
	StatusNotified      RecordStatus = "notified"
	StatusNotifySkipped RecordStatus = "notify-skipped"
)

// Record is one hire and how far it got.
type Record struct {
	Profile models.EmployeeProfile
	Status  RecordStatus
	// Created is set once the account was made in this run.
	Created bool
	Err     error
}

// RunStatistics are the end-of-run counters.
type RunStatistics struct {
	Total         int
	Created       int
	AlreadyExists int
	Failed        int
	Verified      int
	Unverified    int
	EmailsSent    int
	EmailsSkipped int
}

// Run is the state of one pipeline execution. Generated credentials live
// only here and are wiped when the run ends.
type Run struct {
	ID      string
	Records []*Record
	Stats   RunStatistics

	credentials map[string]string
}

// NewRun creates a run over profiles, all pending.
func NewRun(id string, profiles []models.EmployeeProfile) *Run {
	r := &Run{
		ID:          id,
		Records:     make([]*Record, 0, len(profiles)),
		credentials: make(map[string]string),
	}
	for _, p := range profiles {
		r.Records = append(r.Records, &Record{Profile: p, Status: StatusPending})
	}
	r.Stats.Total = len(profiles)
	return r
}

// Credential returns the one-time password generated for username in this
// run, or "".
func (r *Run) Credential(username string) string {
	return r.credentials[username]
}

func (r *Run) setCredential(username, credential string) {
	if credential != "" {
		r.credentials[username] = credential
	}
}

func (r *Run) wipeCredentials() {
	clear(r.credentials)
}

func (r *Run) transition(rec *Record, status RecordStatus) {
	logging.Debug("record status changed",
		"username", rec.Profile.Username,
		"from", rec.Status,
		"to", status)
	rec.Status = status
}

// undelivered lists accounts created in this run whose credential never
// went out.
func (r *Run) undelivered() []string {
	var names []string
	for _, rec := range r.Records {
		if rec.Created && rec.Status != StatusNotified {
			names = append(names, rec.Profile.Username)
		}
	}
	return names
}
