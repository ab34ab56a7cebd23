package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
helpdesk:
  backend: Zendesk
  form_name: New Hire Intake
  zendesk:
    subdomain: acme
fields:
  first_name: 360001
  last_name: 360002
  department: 360004
profile:
  email_domain: acme.example
directory:
  url: ldaps://dc01.acme.example:636
  bind_dn: CN=svc-onboard,OU=Service,DC=acme,DC=example
  base_dn: DC=acme,DC=example
  user_ou: OU=New Hires,DC=acme,DC=example
  domain: acme.example
groups:
  mfa: MFA-Enrollment
  remote_access: VPN-Users
schedule:
  verify_minute: 2
notification:
  company_name: Acme
  portals:
    - name: Password reset
      url: https://passwordreset.acme.example
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("ZENDESK_EMAIL", "agent@acme.example")
	t.Setenv("ZENDESK_TOKEN", "zd-token")
	t.Setenv("LDAP_BIND_PASSWORD", "bind-secret")

	config, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "zendesk", config.Helpdesk.Backend)
	assert.Equal(t, "New Hire Intake", config.Helpdesk.FormName)
	assert.True(t, config.Helpdesk.KeepUnknownForm)
	assert.Equal(t, 30*time.Second, config.Helpdesk.Timeout)
	assert.Equal(t, "agent@acme.example", config.Helpdesk.Zendesk.Email)
	assert.Equal(t, "zd-token", config.Helpdesk.Zendesk.Token)
	assert.Equal(t, int64(360001), config.Fields.FirstName)
	assert.Equal(t, int64(0), config.Fields.Manager)
	assert.Equal(t, "bind-secret", config.Directory.BindPassword)
	assert.Equal(t, "employeeType", config.Directory.EmployeeTypeAttribute)
	assert.Equal(t, "VPN-Users", config.Groups.RemoteAccess)
	assert.Equal(t, 2, config.Schedule.VerifyMinute)
	assert.Equal(t, 15, config.Schedule.NotifyMinute)
	assert.Equal(t, time.Hour, config.Propagation.MaxAge)
	require.Len(t, config.Notification.Portals, 1)
	assert.Equal(t, "https://passwordreset.acme.example", config.Notification.Portals[0].URL)

	assert.NoError(t, ValidateHelpdeskConfig(config))
	assert.NoError(t, ValidateDirectoryConfig(config))
}

func TestLoadConfigPrefixedEnvOverridesFile(t *testing.T) {
	t.Setenv("ONBOARD_HELPDESK_FORM_NAME", "Contractor Intake")
	t.Setenv("ONBOARD_SCHEDULE_NOTIFY_MINUTE", "-1")

	config, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Contractor Intake", config.Helpdesk.FormName)
	assert.Equal(t, -1, config.Schedule.NotifyMinute)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestLoadConfigRejectsBadMinute(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "schedule:\n  verify_minute: 60\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.verify_minute")
	assert.Nil(t, config)
}

func TestValidateHelpdeskConfig(t *testing.T) {
	tests := []struct {
		name     string
		helpdesk HelpdeskConfig
		wantErr  string
	}{
		{
			name: "Zendesk with API token",
			helpdesk: HelpdeskConfig{Backend: "zendesk", FormName: "Intake",
				Zendesk: ZendeskConfig{Subdomain: "acme", Email: "a@acme.example", Token: "t"}},
		},
		{
			name: "Zendesk with OAuth token only",
			helpdesk: HelpdeskConfig{Backend: "zendesk", FormName: "Intake",
				Zendesk: ZendeskConfig{BaseURL: "https://acme.zendesk.com/api/v2", OAuthToken: "o"}},
		},
		{
			name: "Zendesk missing token",
			helpdesk: HelpdeskConfig{Backend: "zendesk", FormName: "Intake",
				Zendesk: ZendeskConfig{Subdomain: "acme", Email: "a@acme.example"}},
			wantErr: "ZENDESK_TOKEN",
		},
		{
			name:     "Missing form name",
			helpdesk: HelpdeskConfig{Backend: "zendesk", Zendesk: ZendeskConfig{Subdomain: "acme", OAuthToken: "o"}},
			wantErr:  "helpdesk.form_name",
		},
		{
			name: "Jira complete",
			helpdesk: HelpdeskConfig{Backend: "jira", FormName: "Onboarding",
				Jira: JiraConfig{URL: "https://acme.atlassian.net", Username: "u", Token: "t", Project: "HR", RequestTypeField: 10010}},
		},
		{
			name: "Jira missing request type field",
			helpdesk: HelpdeskConfig{Backend: "jira", FormName: "Onboarding",
				Jira: JiraConfig{URL: "https://acme.atlassian.net", Username: "u", Token: "t", Project: "HR"}},
			wantErr: "helpdesk.jira.request_type_field",
		},
		{
			name:     "Jira missing URL",
			helpdesk: HelpdeskConfig{Backend: "jira", FormName: "Onboarding", Jira: JiraConfig{Username: "u", Token: "t", Project: "HR", RequestTypeField: 10010}},
			wantErr:  "JIRA_URL",
		},
		{
			name:     "Unknown backend",
			helpdesk: HelpdeskConfig{Backend: "freshdesk", FormName: "Intake"},
			wantErr:  "unsupported helpdesk backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Helpdesk: tt.helpdesk, Profile: ProfileConfig{EmailDomain: "acme.example"}}

			err := ValidateHelpdeskConfig(config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDirectoryConfigRequiresMFAGroup(t *testing.T) {
	config := &Config{
		Directory: DirectoryConfig{
			URL:          "ldaps://dc01:636",
			BindDN:       "CN=svc",
			BindPassword: "secret",
			BaseDN:       "DC=acme",
			UserOU:       "OU=Users,DC=acme",
			Domain:       "acme.example",
		},
	}

	err := ValidateDirectoryConfig(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groups.mfa")

	config.Groups.MFA = "MFA-Enrollment"
	assert.NoError(t, ValidateDirectoryConfig(config))
}

func TestValidateMailConfig(t *testing.T) {
	config := &Config{
		Mail:         MailConfig{Host: "smtp.acme.example", Port: 587, From: "it@acme.example", CredentialFile: "/tmp/cred"},
		Notification: NotificationConfig{CompanyName: "Acme"},
	}
	assert.NoError(t, ValidateMailConfig(config))

	config.Mail.Port = 0
	assert.Error(t, ValidateMailConfig(config))

	config.Mail = MailConfig{Port: 587}
	err := ValidateMailConfig(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail.host")
	assert.Contains(t, err.Error(), "mail.from")
}

func TestValidateSFTPConfig(t *testing.T) {
	config := &Config{SFTP: SFTPConfig{Host: "files.acme.example", User: "onboard"}}

	err := ValidateSFTPConfig(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SFTP_PASS")

	config.SFTP.Pass = "secret"
	assert.NoError(t, ValidateSFTPConfig(config))
}
