package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/jira"
	"github.com/danielolaszy/onboard/internal/verify"
	"github.com/danielolaszy/onboard/internal/zendesk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"export", "provision", "verify", "secret", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestNewTicketSource(t *testing.T) {
	testCases := []struct {
		name          string
		helpdesk      config.HelpdeskConfig
		errorContains string
		check         func(t *testing.T, src any)
	}{
		{
			name: "Zendesk backend",
			helpdesk: config.HelpdeskConfig{
				Backend: "zendesk",
				Timeout: time.Second,
				Zendesk: config.ZendeskConfig{Subdomain: "acme", Email: "it@acme.example", Token: "zd-token"},
			},
			check: func(t *testing.T, src any) {
				client, ok := src.(*zendesk.Client)
				require.True(t, ok)
				assert.Equal(t, "https://acme.zendesk.com/api/v2", client.BaseURL)
			},
		},
		{
			name: "Jira backend",
			helpdesk: config.HelpdeskConfig{
				Backend: "jira",
				Timeout: time.Second,
				Jira:    config.JiraConfig{URL: "https://acme.atlassian.net", Username: "it@acme.example", Token: "jira-token", Project: "HR"},
			},
			check: func(t *testing.T, src any) {
				_, ok := src.(*jira.Client)
				assert.True(t, ok)
			},
		},
		{
			name:          "Zendesk without credentials",
			helpdesk:      config.HelpdeskConfig{Backend: "zendesk", Zendesk: config.ZendeskConfig{Subdomain: "acme"}},
			errorContains: "failed to initialize zendesk client",
		},
		{
			name:          "Unsupported backend",
			helpdesk:      config.HelpdeskConfig{Backend: "servicenow"},
			errorContains: `unsupported helpdesk backend "servicenow"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := newTicketSource(&config.Config{Helpdesk: tc.helpdesk})
			if tc.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorContains)
				return
			}
			require.NoError(t, err)
			tc.check(t, src)
		})
	}
}

func TestPromptCredentials(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		username      string
		expected      string
		password      string
		errorContains string
	}{
		{
			name:     "Prompts for both",
			input:    "relay@acme.example\nS3cret pass\n",
			expected: "relay@acme.example",
			password: "S3cret pass",
		},
		{
			name:     "Username from flag",
			input:    "S3cret\r\n",
			username: "relay@acme.example",
			expected: "relay@acme.example",
			password: "S3cret",
		},
		{
			name:     "Password without trailing newline",
			input:    "relay\nS3cret",
			expected: "relay",
			password: "S3cret",
		},
		{
			name:          "Empty username",
			input:         "\n",
			errorContains: "smtp username is required",
		},
		{
			name:          "Empty password",
			input:         "relay\n\n",
			errorContains: "smtp password is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			creds, err := promptCredentials(strings.NewReader(tc.input), &out, tc.username)
			if tc.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, creds.Username)
			assert.Equal(t, tc.password, creds.Password)
			assert.Contains(t, out.String(), "SMTP password: ")
		})
	}
}

func TestMaskedConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Helpdesk.Zendesk.Token = "zendesk-api-token"
	cfg.Helpdesk.Jira.Token = "jira-api-token"
	cfg.Directory.BindPassword = "bind-password"
	cfg.SFTP.Pass = "sftp-password"
	cfg.Directory.Domain = "acme.example"

	masked := maskedConfig(cfg)

	assert.Equal(t, "zend...***", masked.Helpdesk.Zendesk.Token)
	assert.Equal(t, "<not set>", masked.Helpdesk.Zendesk.OAuthToken)
	assert.Equal(t, "jira...***", masked.Helpdesk.Jira.Token)
	assert.Equal(t, "bind...***", masked.Directory.BindPassword)
	assert.Equal(t, "sftp...***", masked.SFTP.Pass)
	assert.Equal(t, "acme.example", masked.Directory.Domain)

	assert.Equal(t, "bind-password", cfg.Directory.BindPassword, "original is left untouched")
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
helpdesk:
  backend: zendesk
  form_name: New Hire
  zendesk:
    subdomain: acme
    token: supersecret-token
directory:
  domain: acme.example
`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "show", "--config", path, "--log-dir", ""})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, execute(context.Background()))

	got := out.String()
	assert.Contains(t, got, "form_name: New Hire")
	assert.Contains(t, got, "domain: acme.example")
	assert.Contains(t, got, "supe...***")
	assert.NotContains(t, got, "supersecret-token")
}

func TestExecuteClosesLogFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("helpdesk:\n  backend: zendesk\n"), 0o600))

	rootCmd.SetArgs([]string{"export", "--config", path, "--log-dir", filepath.Join(dir, "logs")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helpdesk.form_name")
	assert.Nil(t, logCloser, "log file is closed after a failed command")

	files, err := filepath.Glob(filepath.Join(dir, "logs", "onboard-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "command execution failed")
}

// lookupFunc adapts a function to verify.DirectoryLookup.
type lookupFunc func(ctx context.Context, address string) (verify.UserInfo, error)

func (f lookupFunc) LookupUser(ctx context.Context, address string) (verify.UserInfo, error) {
	return f(ctx, address)
}

func TestOnDemandVerifierMaxAge(t *testing.T) {
	testCases := []struct {
		name     string
		maxAge   time.Duration
		expected bool
	}{
		{name: "Any age by default", maxAge: 0, expected: true},
		{name: "Explicit max age", maxAge: time.Hour, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newOnDemandVerifier(config.PropagationConfig{
				GoogleWorkspaceDomain: "acme.example",
				MaxWaitMinutes:        1,
				PollIntervalSeconds:   30,
				MaxAge:                time.Hour,
			}, tc.maxAge)
			v.Lookup = lookupFunc(func(context.Context, string) (verify.UserInfo, error) {
				return verify.UserInfo{Exists: true, Created: time.Now().Add(-3 * time.Hour)}, nil
			})

			assert.Equal(t, tc.expected, v.Verify(context.Background(), "jane.doe").Verified)
		})
	}

	assert.Equal(t, "0s", verifyCmd.Flags().Lookup("max-age").DefValue)
}
