package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/schedule"
	"github.com/danielolaszy/onboard/pkg/models"
	"github.com/jonboulle/clockwork"
)

// Provisioner creates directory accounts.
type Provisioner interface {
	Provision(ctx context.Context, p models.EmployeeProfile) models.ProvisioningResult
}

// Verifier confirms propagation to the secondary directory.
type Verifier interface {
	Verify(ctx context.Context, username string) models.VerificationResult
}

// Notifier delivers credentials.
type Notifier interface {
	Send(ctx context.Context, p models.EmployeeProfile, credential string) bool
}

// Barrier waits for a minute of the hour.
type Barrier interface {
	WaitUntilMinute(ctx context.Context, minute int) error
}

// Options shape a run.
type Options struct {
	// Manual replaces both barriers with a fixed PostCreateDelay.
	Manual          bool
	PostCreateDelay time.Duration
	// SkipNotify stops after verification.
	SkipNotify   bool
	VerifyMinute int
	NotifyMinute int
}

// Orchestrator drives a Run through its phases.
type Orchestrator struct {
	Provisioner Provisioner
	Verifier    Verifier
	Notifier    Notifier
	Barrier     Barrier
	Clock       clockwork.Clock
	Options     Options
}

// Execute provisions every record, waits for the sync cadence, verifies the
// new accounts and emails credentials for the verified ones. Per-record
// failures are counted and never stop the batch. It only returns an error
// when ctx ends the run early.
func (o *Orchestrator) Execute(ctx context.Context, run *Run) error {
	defer o.finish(run)

	logging.Info("starting provisioning run",
		"total", run.Stats.Total,
		"manual", o.Options.Manual)

	for _, rec := range run.Records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("provisioning interrupted: %w", err)
		}
		o.provision(ctx, run, rec)
	}

	if run.Stats.Created == 0 {
		logging.Info("no accounts created, skipping verification and notification")
		return nil
	}

	if err := o.waitForVerification(ctx); err != nil {
		return fmt.Errorf("waiting for verification: %w", err)
	}

	for _, rec := range run.Records {
		if !rec.Created {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("verification interrupted: %w", err)
		}
		o.verify(ctx, run, rec)
	}

	if o.Options.SkipNotify {
		logging.Info("email notification disabled for this run")
		return nil
	}

	if !o.Options.Manual {
		if err := o.Barrier.WaitUntilMinute(ctx, o.Options.NotifyMinute); err != nil {
			return fmt.Errorf("waiting for notification: %w", err)
		}
	}

	for _, rec := range run.Records {
		if !rec.Created {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notification interrupted: %w", err)
		}
		o.notify(ctx, run, rec)
	}

	return nil
}

func (o *Orchestrator) provision(ctx context.Context, run *Run, rec *Record) {
	result := o.Provisioner.Provision(ctx, rec.Profile)

	switch result.Status {
	case models.ProvisionCreated:
		rec.Created = true
		run.setCredential(rec.Profile.Username, result.Credential)
		run.Stats.Created++
		run.transition(rec, StatusCreated)
	case models.ProvisionAlreadyExists:
		run.Stats.AlreadyExists++
		run.transition(rec, StatusExists)
	default:
		rec.Err = result.Err
		run.Stats.Failed++
		run.transition(rec, StatusFailed)
	}
}

func (o *Orchestrator) waitForVerification(ctx context.Context) error {
	if o.Options.Manual {
		clock := o.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		logging.Info("waiting before verification",
			"delay", o.Options.PostCreateDelay.String())
		return schedule.Sleep(ctx, clock, o.Options.PostCreateDelay)
	}
	return o.Barrier.WaitUntilMinute(ctx, o.Options.VerifyMinute)
}

func (o *Orchestrator) verify(ctx context.Context, run *Run, rec *Record) {
	if o.Verifier.Verify(ctx, rec.Profile.Username).Verified {
		run.Stats.Verified++
		run.transition(rec, StatusVerified)
		return
	}
	run.Stats.Unverified++
	run.transition(rec, StatusUnverified)
}

func (o *Orchestrator) notify(ctx context.Context, run *Run, rec *Record) {
	if rec.Status != StatusVerified {
		logging.Warn("account not verified, withholding credentials",
			"username", rec.Profile.Username)
		run.Stats.EmailsSkipped++
		run.transition(rec, StatusNotifySkipped)
		return
	}

	if o.Notifier.Send(ctx, rec.Profile, run.Credential(rec.Profile.Username)) {
		run.Stats.EmailsSent++
		run.transition(rec, StatusNotified)
		return
	}
	run.Stats.EmailsSkipped++
	run.transition(rec, StatusNotifySkipped)
}

func (o *Orchestrator) finish(run *Run) {
	if pending := run.undelivered(); len(pending) > 0 {
		logging.Warn("credentials not delivered, reset these passwords and notify manually",
			"usernames", pending)
	}
	run.wipeCredentials()

	s := run.Stats
	logging.Info("provisioning run complete",
		"total", s.Total,
		"created", s.Created,
		"already_exists", s.AlreadyExists,
		"failed", s.Failed,
		"verified", s.Verified,
		"unverified", s.Unverified,
		"emails_sent", s.EmailsSent,
		"emails_skipped", s.EmailsSkipped)
}
