package cmd

import (
	"fmt"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd groups configuration commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(maskedConfig(appConfig))
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// maskedConfig returns a copy of cfg with every credential masked.
func maskedConfig(cfg *config.Config) config.Config {
	out := *cfg
	out.Helpdesk.Zendesk.Token = logging.MaskSensitive(cfg.Helpdesk.Zendesk.Token)
	out.Helpdesk.Zendesk.OAuthToken = logging.MaskSensitive(cfg.Helpdesk.Zendesk.OAuthToken)
	out.Helpdesk.Jira.Token = logging.MaskSensitive(cfg.Helpdesk.Jira.Token)
	out.Directory.BindPassword = logging.MaskSensitive(cfg.Directory.BindPassword)
	out.SFTP.Pass = logging.MaskSensitive(cfg.SFTP.Pass)
	return out
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
