package tickets

import (
	"context"
	"fmt"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/profile"
	"github.com/danielolaszy/onboard/pkg/models"
)

// Exporter runs phase one: ticket search through profile extraction.
type Exporter struct {
	Source          Source
	Fields          models.FieldMap
	Profile         profile.Options
	KeepUnknownForm bool
	CommentGate     bool
}

// ExportStats counts tickets at each step of an export.
type ExportStats struct {
	Found          int
	Pending        int
	GateFailures   int
	Gated          int
	DetailFailures int
	Exported       int
}

// Export searches the form, filters to pending tickets and extracts a profile
// from each ticket's detail. Only the search itself can fail the export; every
// other failure skips the ticket concerned.
func (e *Exporter) Export(ctx context.Context, formName string) ([]models.EmployeeProfile, ExportStats, error) {
	var stats ExportStats

	found, err := e.Source.Search(ctx, formName)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to search tickets: %w", err)
	}
	stats.Found = len(found)

	candidates := FilterByForm(FilterPending(found), formName, e.KeepUnknownForm)
	stats.Pending = len(candidates)

	logging.Info("found onboarding tickets",
		"form", formName,
		"total_count", stats.Found,
		"pending_count", stats.Pending)

	if e.CommentGate && len(candidates) > 0 {
		gated, failures := ApplyCommentGate(ctx, e.Source, candidates)
		stats.GateFailures = failures
		stats.Gated = len(candidates) - len(gated) - failures
		candidates = gated
	}

	profiles := make([]models.EmployeeProfile, 0, len(candidates))
	for _, t := range candidates {
		detail, err := e.Source.Ticket(ctx, t.ID)
		if err != nil {
			logging.Warn("failed to fetch ticket detail, skipping",
				"ticket_id", t.ID,
				"error", err)
			stats.DetailFailures++
			continue
		}
		if !IsPending(detail) {
			logging.Debug("ticket left the pending state since search, skipping",
				"ticket_id", t.ID,
				"status", detail.Status)
			continue
		}

		p := profile.Extract(detail, e.Fields, e.Profile)
		logging.Debug("extracted profile",
			"ticket_id", t.ID,
			"username", p.Username,
			"employee_type", p.EmployeeType)
		profiles = append(profiles, p)
	}
	stats.Exported = len(profiles)

	return profiles, stats, nil
}
