// Package verify confirms that new accounts have reached the secondary
// identity system before their credentials are released.
package verify

import (
	"context"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/schedule"
	"github.com/danielolaszy/onboard/pkg/models"
	"github.com/jonboulle/clockwork"
)

// UserInfo is what the secondary directory knows about an address.
type UserInfo struct {
	Exists bool
	// Created is zero when the creation time could not be read.
	Created time.Time
}

// DirectoryLookup queries the secondary directory for one address.
type DirectoryLookup interface {
	LookupUser(ctx context.Context, address string) (UserInfo, error)
}

// Verifier polls the secondary directory until an account shows up or the
// wait runs out.
type Verifier struct {
	Lookup DirectoryLookup
	// Domain is the secondary directory's mail domain. Empty disables
	// verification and every account passes.
	Domain       string
	MaxWait      time.Duration
	PollInterval time.Duration
	// MaxAge is the oldest an account may be and still count as the one
	// just created. Zero accepts any creation time.
	MaxAge time.Duration
	Clock  clockwork.Clock
}

// NewVerifier builds a verifier from configuration.
func NewVerifier(lookup DirectoryLookup, cfg config.PropagationConfig, clock clockwork.Clock) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{
		Lookup:       lookup,
		Domain:       cfg.GoogleWorkspaceDomain,
		MaxWait:      time.Duration(cfg.MaxWaitMinutes) * time.Minute,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxAge:       cfg.MaxAge,
		Clock:        clock,
	}
}

// Attempts is the number of lookups made before giving up:
// ceil(MaxWait / PollInterval), and never fewer than one.
func (v *Verifier) Attempts() int {
	if v.PollInterval <= 0 {
		return 1
	}
	n := int((v.MaxWait + v.PollInterval - 1) / v.PollInterval)
	if n < 1 {
		return 1
	}
	return n
}

// Verify reports whether username has propagated. An account that is present
// with a recent or unreadable creation time is verified. One that is present
// but older than MaxAge is a sync anomaly and fails without further polling.
func (v *Verifier) Verify(ctx context.Context, username string) models.VerificationResult {
	result := models.VerificationResult{Username: username}

	if v.Domain == "" {
		logging.Debug("propagation check disabled, accepting account",
			"username", username)
		result.Verified = true
		return result
	}

	address := username + "@" + v.Domain
	attempts := v.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		info, err := v.Lookup.LookupUser(ctx, address)
		switch {
		case err != nil:
			logging.Warn("propagation lookup failed",
				"username", username,
				"attempt", attempt,
				"error", err)
		case info.Exists:
			result.Verified = v.recent(username, info)
			return result
		default:
			logging.Debug("account not propagated yet",
				"username", username,
				"attempt", attempt,
				"attempts", attempts)
		}

		if attempt == attempts {
			break
		}
		if err := schedule.Sleep(ctx, v.Clock, v.PollInterval); err != nil {
			logging.Warn("propagation check interrupted",
				"username", username,
				"error", err)
			return result
		}
	}

	logging.Warn("account did not propagate in time",
		"username", username,
		"address", address,
		"max_wait", v.MaxWait.String())
	return result
}

func (v *Verifier) recent(username string, info UserInfo) bool {
	if info.Created.IsZero() {
		logging.Info("account found, creation time unreadable, accepting",
			"username", username)
		return true
	}

	age := v.Clock.Now().Sub(info.Created)
	if v.MaxAge > 0 && age > v.MaxAge {
		logging.Warn("account found but created too long ago",
			"username", username,
			"created", info.Created,
			"age", age.Round(time.Second).String())
		return false
	}

	logging.Info("account propagated",
		"username", username,
		"created", info.Created)
	return true
}
