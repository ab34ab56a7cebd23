// Package tickets pulls onboarding tickets from a helpdesk and narrows them to
// the ones still awaiting processing.
package tickets

import (
	"context"
	"strings"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
)

// Source is the helpdesk capability the exporter needs.
type Source interface {
	// Search returns every ticket matching the intake form. A failure here
	// is fatal for the run.
	Search(ctx context.Context, formName string) ([]models.Ticket, error)
	// Ticket fetches the full custom-field payload of one ticket.
	Ticket(ctx context.Context, id int64) (models.Ticket, error)
	// CountComments splits a ticket's comments into public and private.
	CountComments(ctx context.Context, id int64) (models.CommentCount, error)
}

// IsPending reports whether a ticket is still waiting to be processed.
func IsPending(t models.Ticket) bool {
	return t.Status == models.TicketNew || t.Status == models.TicketOpen
}

// FilterPending drops every ticket that is neither new nor open. Dropped
// tickets are expected and not reported.
func FilterPending(tickets []models.Ticket) []models.Ticket {
	pending := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if IsPending(t) {
			pending = append(pending, t)
		}
	}
	return pending
}

// MatchesForm reports whether a ticket belongs to the intake form. The match
// is a case-insensitive substring test either way round. Tickets whose form
// could not be discovered are kept when keepUnknown is set.
func MatchesForm(t models.Ticket, formName string, keepUnknown bool) bool {
	if t.FormName == "" {
		return keepUnknown
	}
	have := strings.ToLower(strings.TrimSpace(t.FormName))
	want := strings.ToLower(strings.TrimSpace(formName))
	return have == want || strings.Contains(have, want) || strings.Contains(want, have)
}

// FilterByForm keeps the tickets that MatchesForm accepts.
func FilterByForm(tickets []models.Ticket, formName string, keepUnknown bool) []models.Ticket {
	kept := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if MatchesForm(t, formName, keepUnknown) {
			kept = append(kept, t)
			continue
		}
		logging.Debug("dropping ticket from another form",
			"ticket_id", t.ID,
			"form", t.FormName)
	}
	return kept
}

// MaxGateComments is the most comments a ticket may carry and still pass the
// comment gate: the requester's submission and nothing else.
const MaxGateComments = 1

// ApplyCommentGate keeps tickets with at most MaxGateComments comments. A
// ticket whose comments cannot be fetched is excluded with a warning and the
// rest of the batch carries on. It returns the kept tickets and how many
// fetches failed.
func ApplyCommentGate(ctx context.Context, src Source, tickets []models.Ticket) ([]models.Ticket, int) {
	kept := make([]models.Ticket, 0, len(tickets))
	failures := 0

	for _, t := range tickets {
		count, err := src.CountComments(ctx, t.ID)
		if err != nil {
			logging.Warn("failed to count ticket comments, excluding ticket",
				"ticket_id", t.ID,
				"error", err)
			failures++
			continue
		}

		if count.Total() > MaxGateComments {
			logging.Debug("ticket already has replies, excluding",
				"ticket_id", t.ID,
				"public", count.Public,
				"private", count.Private)
			continue
		}

		kept = append(kept, t)
	}

	return kept, failures
}
