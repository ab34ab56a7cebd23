package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/secret"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretCmd groups the SMTP credential store commands.
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the encrypted SMTP credentials",
}

var secretSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the SMTP relay username and password for the current user",
	Long: `Prompt for the SMTP relay credentials and store them encrypted at
mail.credential_file. The file can only be decrypted by the same OS user on
the same machine, so run this as the account that runs 'onboard provision'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if cfg.Mail.CredentialFile == "" {
			return fmt.Errorf("missing required configuration: [mail.credential_file]")
		}

		username, err := cmd.Flags().GetString("username")
		if err != nil {
			return err
		}

		creds, err := promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), username)
		if err != nil {
			return err
		}

		store := secret.NewStore(cfg.Mail.CredentialFile)
		if err := store.Save(creds); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}

		logging.Info("smtp credentials saved",
			"path", store.Path,
			"username", creds.Username)
		return nil
	},
}

// promptCredentials reads the username (unless given) and password from in.
// When in is a terminal the password is read without echo.
func promptCredentials(in io.Reader, out io.Writer, username string) (secret.Credentials, error) {
	reader := bufio.NewReader(in)

	if username == "" {
		fmt.Fprint(out, "SMTP username: ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return secret.Credentials{}, fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return secret.Credentials{}, fmt.Errorf("smtp username is required")
	}

	fmt.Fprint(out, "SMTP password: ")
	var password string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return secret.Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
	} else {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return secret.Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return secret.Credentials{}, fmt.Errorf("smtp password is required")
	}

	return secret.Credentials{Username: username, Password: password}, nil
}

func init() {
	secretSetCmd.Flags().StringP("username", "u", "", "SMTP username (prompted when empty)")
	secretCmd.AddCommand(secretSetCmd)
}
