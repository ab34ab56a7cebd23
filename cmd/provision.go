package cmd

import (
	"fmt"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/directory"
	"github.com/danielolaszy/onboard/internal/handoff"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/notify"
	"github.com/danielolaszy/onboard/internal/pipeline"
	"github.com/danielolaszy/onboard/internal/schedule"
	"github.com/danielolaszy/onboard/internal/secret"
	"github.com/danielolaszy/onboard/internal/verify"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// provisionCmd runs phase two: CSV handoff to accounts and welcome emails.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create directory accounts for the hires in the CSV handoff",
	Long: `Create a directory account for every row of the CSV handoff, then deliver
each new hire their one-time password.

The run has three steps:

1. Accounts are created, or skipped when they already exist. New accounts are
   added to the MFA group and to any optional groups their row asks for.
2. At schedule.verify_minute the new accounts are looked up in Google Workspace
   until they appear or propagation.max_wait_minutes runs out.
3. At schedule.notify_minute every verified account gets a welcome email with
   its password. Unverified accounts get nothing.

Rerunning with the same handoff is safe: existing accounts are never modified
and no email is sent for them.

With --manual the two scheduled waits are replaced by a fixed delay
(schedule.post_create_delay) after account creation.

Example:
  onboard provision --csv pending_hires.csv
  onboard provision --manual --no-email`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		csvPath, err := cmd.Flags().GetString("csv")
		if err != nil {
			return err
		}
		if csvPath == "" {
			csvPath = cfg.Output.CSVPath
		}

		manual, err := cmd.Flags().GetBool("manual")
		if err != nil {
			return err
		}

		noEmail, err := cmd.Flags().GetBool("no-email")
		if err != nil {
			return err
		}

		if err := config.ValidateDirectoryConfig(cfg); err != nil {
			return err
		}
		if !noEmail {
			if err := config.ValidateMailConfig(cfg); err != nil {
				return err
			}
		}

		profiles, err := handoff.ReadFile(csvPath)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			logging.Info("handoff has no rows, nothing to provision",
				"path", csvPath)
			return nil
		}

		logging.Info("loaded handoff",
			"path", csvPath,
			"rows", len(profiles))

		dir, err := directory.DialLDAP(cfg.Directory)
		if err != nil {
			return err
		}
		defer dir.Close()

		clock := clockwork.NewRealClock()

		secrets := secret.NewStore(cfg.Mail.CredentialFile)
		if !noEmail {
			if _, err := secrets.Load(); err != nil {
				logging.Warn("smtp credentials unavailable, welcome emails will be skipped",
					"error", err,
					"remediation", "run 'onboard secret set' as this user")
			}
		}

		orch := &pipeline.Orchestrator{
			Provisioner: directory.NewProvisioner(dir, cfg.Groups),
			Verifier:    verify.NewVerifier(verify.NewGAMLookup(cfg.Propagation.GAMPath), cfg.Propagation, clock),
			Notifier: notify.NewDispatcher(
				notify.NewSMTPMailer(cfg.Mail),
				secrets,
				cfg.Mail,
				cfg.Notification,
				cfg.Directory.Domain,
			),
			Barrier: schedule.NewBarrier(clock, cfg.Schedule.Grace),
			Clock:   clock,
			Options: pipeline.Options{
				Manual:          manual,
				PostCreateDelay: cfg.Schedule.PostCreateDelay,
				SkipNotify:      noEmail,
				VerifyMinute:    cfg.Schedule.VerifyMinute,
				NotifyMinute:    cfg.Schedule.NotifyMinute,
			},
		}

		run := pipeline.NewRun(runID, profiles)
		if err := orch.Execute(cmd.Context(), run); err != nil {
			return fmt.Errorf("provisioning run %s stopped: %w", run.ID, err)
		}

		return nil
	},
}

func init() {
	provisionCmd.Flags().String("csv", "", "CSV handoff path (default output.csv_path)")
	provisionCmd.Flags().Bool("manual", false, "wait schedule.post_create_delay instead of the scheduled minutes")
	provisionCmd.Flags().Bool("no-email", false, "stop after verification without sending welcome emails")
}
