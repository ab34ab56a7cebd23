package cmd

import (
	"fmt"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/verify"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// verifyCmd checks propagation for accounts created by an earlier run.
var verifyCmd = &cobra.Command{
	Use:   "verify <username>...",
	Short: "Check that accounts have reached Google Workspace",
	Long: `Look up each username in Google Workspace, polling until it appears or
propagation.max_wait_minutes runs out.

Use this after an interrupted provision run to find out which of the accounts
it created are ready before resetting and sending their passwords by hand.

Accounts are accepted whatever their age unless --max-age is given, since
the run that created them may be hours old.

Example:
  onboard verify jane.doe john.smith
  onboard verify --max-age 1h jane.doe`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		if cfg.Propagation.GoogleWorkspaceDomain == "" {
			return fmt.Errorf("missing required configuration: [propagation.google_workspace_domain]")
		}

		maxAge, err := cmd.Flags().GetDuration("max-age")
		if err != nil {
			return err
		}

		v := newOnDemandVerifier(cfg.Propagation, maxAge)

		var unverified []string
		for _, username := range args {
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			result := v.Verify(cmd.Context(), username)
			logging.Info("verification result",
				"username", result.Username,
				"verified", result.Verified)
			if !result.Verified {
				unverified = append(unverified, username)
			}
		}

		if len(unverified) > 0 {
			return fmt.Errorf("%d of %d accounts not verified: %v", len(unverified), len(args), unverified)
		}
		return nil
	},
}

// newOnDemandVerifier builds a GAM-backed verifier whose recency check uses
// maxAge instead of propagation.max_age.
func newOnDemandVerifier(cfg config.PropagationConfig, maxAge time.Duration) *verify.Verifier {
	cfg.MaxAge = maxAge
	return verify.NewVerifier(verify.NewGAMLookup(cfg.GAMPath), cfg, clockwork.NewRealClock())
}

func init() {
	verifyCmd.Flags().Duration("max-age", 0, "reject accounts created longer ago than this; 0 accepts any age")
}
