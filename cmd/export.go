package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/handoff"
	"github.com/danielolaszy/onboard/internal/jira"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/profile"
	"github.com/danielolaszy/onboard/internal/sftpclient"
	"github.com/danielolaszy/onboard/internal/tickets"
	"github.com/danielolaszy/onboard/internal/zendesk"
	"github.com/spf13/cobra"
)

// exportCmd runs phase one: helpdesk tickets to the CSV handoff.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pending new-hire tickets to the CSV handoff",
	Long: `Search the helpdesk for tickets submitted through the new-hire form and
write one CSV row per pending ticket.

Only tickets in the New or Open state are exported. With helpdesk.comment_gate
enabled, tickets that already carry more than one comment are skipped because
someone has started working on them.

Example:
  onboard export -o pending_hires.csv --sftp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output == "" {
			output = cfg.Output.CSVPath
		}

		upload, err := cmd.Flags().GetBool("sftp")
		if err != nil {
			return err
		}

		if err := config.ValidateHelpdeskConfig(cfg); err != nil {
			return err
		}
		if upload {
			if err := config.ValidateSFTPConfig(cfg); err != nil {
				return err
			}
		}

		source, err := newTicketSource(cfg)
		if err != nil {
			return err
		}

		exporter := &tickets.Exporter{
			Source: source,
			Fields: cfg.Fields,
			Profile: profile.Options{
				EmailDomain:    cfg.Profile.EmailDomain,
				FoldDiacritics: cfg.Profile.FoldDiacritics,
			},
			KeepUnknownForm: cfg.Helpdesk.KeepUnknownForm,
			CommentGate:     cfg.Helpdesk.CommentGate,
		}

		logging.Info("starting export",
			"backend", cfg.Helpdesk.Backend,
			"form", cfg.Helpdesk.FormName,
			"output", output)

		profiles, stats, err := exporter.Export(cmd.Context(), cfg.Helpdesk.FormName)
		if err != nil {
			return err
		}

		logging.Info("export summary",
			"found", stats.Found,
			"pending", stats.Pending,
			"gated", stats.Gated,
			"gate_failures", stats.GateFailures,
			"detail_failures", stats.DetailFailures,
			"exported", stats.Exported)

		if len(profiles) == 0 {
			logging.Info("no matching tickets, nothing to export")
			return nil
		}

		if err := handoff.WriteFile(output, profiles); err != nil {
			return fmt.Errorf("failed to write handoff: %w", err)
		}
		logging.Info("wrote handoff",
			"path", output,
			"rows", len(profiles))

		if upload {
			if err := sftpclient.UploadFile(cmd.Context(), cfg.SFTP, output, filepath.Base(output)); err != nil {
				return fmt.Errorf("failed to upload handoff: %w", err)
			}
		}

		return nil
	},
}

// newTicketSource builds the client for the configured helpdesk backend.
func newTicketSource(cfg *config.Config) (tickets.Source, error) {
	switch cfg.Helpdesk.Backend {
	case "zendesk":
		client, err := zendesk.NewClient(cfg.Helpdesk.Zendesk, cfg.Helpdesk.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize zendesk client: %w", err)
		}
		return client, nil
	case "jira":
		client, err := jira.NewClient(cfg.Helpdesk.Jira, cfg.Helpdesk.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jira client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported helpdesk backend %q", cfg.Helpdesk.Backend)
	}
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "CSV handoff path (default output.csv_path)")
	exportCmd.Flags().Bool("sftp", false, "upload the handoff to the configured SFTP drop")
}
