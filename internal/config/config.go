// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Helpdesk     HelpdeskConfig     `mapstructure:"helpdesk" yaml:"helpdesk"`
	Fields       models.FieldMap    `mapstructure:"fields" yaml:"fields"`
	Profile      ProfileConfig      `mapstructure:"profile" yaml:"profile"`
	Directory    DirectoryConfig    `mapstructure:"directory" yaml:"directory"`
	Groups       GroupConfig        `mapstructure:"groups" yaml:"groups"`
	Propagation  PropagationConfig  `mapstructure:"propagation" yaml:"propagation"`
	Schedule     ScheduleConfig     `mapstructure:"schedule" yaml:"schedule"`
	Mail         MailConfig         `mapstructure:"mail" yaml:"mail"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
	SFTP         SFTPConfig         `mapstructure:"sftp" yaml:"sftp"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// HelpdeskConfig selects and configures the ticketing backend.
type HelpdeskConfig struct {
	// Backend is "zendesk" or "jira".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// FormName is the intake form new-hire tickets are submitted through.
	FormName string `mapstructure:"form_name" yaml:"form_name"`
	// KeepUnknownForm retains tickets whose form cannot be determined.
	KeepUnknownForm bool `mapstructure:"keep_unknown_form" yaml:"keep_unknown_form"`
	// CommentGate keeps only tickets with at most one comment.
	CommentGate bool          `mapstructure:"comment_gate" yaml:"comment_gate"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Zendesk     ZendeskConfig `mapstructure:"zendesk" yaml:"zendesk"`
	Jira        JiraConfig    `mapstructure:"jira" yaml:"jira"`
}

// ZendeskConfig holds Zendesk specific configuration.
type ZendeskConfig struct {
	Subdomain string `mapstructure:"subdomain" yaml:"subdomain"`
	// BaseURL overrides the URL derived from Subdomain.
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Email      string `mapstructure:"email" yaml:"email"`
	Token      string `mapstructure:"token" yaml:"token"`
	OAuthToken string `mapstructure:"oauth_token" yaml:"oauth_token"`
}

// JiraConfig holds Jira Service Management specific configuration.
type JiraConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Token    string `mapstructure:"token" yaml:"token"`
	Project  string `mapstructure:"project" yaml:"project"`
	// RequestTypeField is the custom field ID carrying the request type.
	RequestTypeField int64 `mapstructure:"request_type_field" yaml:"request_type_field"`
}

// ProfileConfig tunes profile extraction.
type ProfileConfig struct {
	// EmailDomain is used to synthesize a personal email when the ticket has none.
	EmailDomain    string `mapstructure:"email_domain" yaml:"email_domain"`
	FoldDiacritics bool   `mapstructure:"fold_diacritics" yaml:"fold_diacritics"`
}

// DirectoryConfig holds the Active Directory connection and account layout.
type DirectoryConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password"`
	// BaseDN is searched for existing users, managers and groups.
	BaseDN string `mapstructure:"base_dn" yaml:"base_dn"`
	// UserOU is where new accounts are created.
	UserOU string `mapstructure:"user_ou" yaml:"user_ou"`
	// Domain is the userPrincipalName suffix and login email domain.
	Domain                  string        `mapstructure:"domain" yaml:"domain"`
	EmployeeTypeAttribute   string        `mapstructure:"employee_type_attribute" yaml:"employee_type_attribute"`
	SecondaryEmailAttribute string        `mapstructure:"secondary_email_attribute" yaml:"secondary_email_attribute"`
	InsecureSkipVerify      bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Timeout                 time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GroupConfig enumerates the groups an account can be added to.
type GroupConfig struct {
	// MFA is mandatory for every new account.
	MFA          string `mapstructure:"mfa" yaml:"mfa"`
	ITEquipment  string `mapstructure:"it_equipment" yaml:"it_equipment"`
	RemoteAccess string `mapstructure:"remote_access" yaml:"remote_access"`
	OfficeUsers  string `mapstructure:"office_users" yaml:"office_users"`
}

// PropagationConfig controls the secondary directory check.
type PropagationConfig struct {
	// GoogleWorkspaceDomain enables verification when set.
	GoogleWorkspaceDomain string        `mapstructure:"google_workspace_domain" yaml:"google_workspace_domain"`
	GAMPath               string        `mapstructure:"gam_path" yaml:"gam_path"`
	MaxWaitMinutes        int           `mapstructure:"max_wait_minutes" yaml:"max_wait_minutes"`
	PollIntervalSeconds   int           `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	MaxAge                time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// ScheduleConfig aligns the pipeline with the external sync cadence.
type ScheduleConfig struct {
	// VerifyMinute and NotifyMinute are minutes of the hour; -1 disables the wait.
	VerifyMinute    int           `mapstructure:"verify_minute" yaml:"verify_minute"`
	NotifyMinute    int           `mapstructure:"notify_minute" yaml:"notify_minute"`
	Grace           time.Duration `mapstructure:"grace" yaml:"grace"`
	PostCreateDelay time.Duration `mapstructure:"post_create_delay" yaml:"post_create_delay"`
}

// MailConfig holds the SMTP relay settings.
type MailConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	From           string `mapstructure:"from" yaml:"from"`
	Subject        string `mapstructure:"subject" yaml:"subject"`
	SSL            bool   `mapstructure:"ssl" yaml:"ssl"`
	CredentialFile string `mapstructure:"credential_file" yaml:"credential_file"`
}

// PortalLink is one URL listed in the welcome email.
type PortalLink struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// NotificationConfig holds the welcome email content.
type NotificationConfig struct {
	CompanyName string       `mapstructure:"company_name" yaml:"company_name"`
	Portals     []PortalLink `mapstructure:"portals" yaml:"portals"`
}

// OutputConfig holds output paths.
type OutputConfig struct {
	CSVPath string `mapstructure:"csv_path" yaml:"csv_path"`
}

// SFTPConfig holds the optional handoff upload target.
type SFTPConfig struct {
	Host                  string `mapstructure:"host" yaml:"host"`
	Port                  int    `mapstructure:"port" yaml:"port"`
	User                  string `mapstructure:"user" yaml:"user"`
	Pass                  string `mapstructure:"pass" yaml:"pass"`
	RemoteDir             string `mapstructure:"remote_dir" yaml:"remote_dir"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`

	// KnownHostsFile verifies the server key unless InsecureIgnoreHostKey is set.
	KnownHostsFile string        `mapstructure:"known_hosts_file" yaml:"known_hosts_file"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
}

// LoadConfig reads configuration from the YAML file at path (or onboard.yaml in
// the working directory or ~/.onboard when path is empty), then overlays
// ONBOARD_-prefixed and well-known secret environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("onboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", ".onboard"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logging.Debug("no config file found, using environment only")
	}

	v.SetEnvPrefix("ONBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map well-known secret environment variables
	bindings := map[string]string{
		"helpdesk.zendesk.email":       "ZENDESK_EMAIL",
		"helpdesk.zendesk.token":       "ZENDESK_TOKEN",
		"helpdesk.zendesk.oauth_token": "ZENDESK_OAUTH_TOKEN",
		"helpdesk.jira.url":            "JIRA_URL",
		"helpdesk.jira.username":       "JIRA_USERNAME",
		"helpdesk.jira.token":          "JIRA_TOKEN",
		"directory.bind_password":      "LDAP_BIND_PASSWORD",
		"sftp.pass":                    "SFTP_PASS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "ONBOARD_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	config.Helpdesk.Backend = strings.ToLower(strings.TrimSpace(config.Helpdesk.Backend))

	if err := ValidateScheduleConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("helpdesk.backend", "zendesk")
	v.SetDefault("helpdesk.form_name", "")
	v.SetDefault("helpdesk.keep_unknown_form", true)
	v.SetDefault("helpdesk.comment_gate", false)
	v.SetDefault("helpdesk.timeout", 30*time.Second)
	v.SetDefault("helpdesk.zendesk.subdomain", "")
	v.SetDefault("helpdesk.zendesk.base_url", "")
	v.SetDefault("helpdesk.zendesk.email", "")
	v.SetDefault("helpdesk.zendesk.token", "")
	v.SetDefault("helpdesk.zendesk.oauth_token", "")
	v.SetDefault("helpdesk.jira.url", "")
	v.SetDefault("helpdesk.jira.username", "")
	v.SetDefault("helpdesk.jira.token", "")
	v.SetDefault("helpdesk.jira.project", "")
	v.SetDefault("helpdesk.jira.request_type_field", 0)

	for _, key := range []string{"first_name", "last_name", "personal_email", "department", "job_title", "manager", "employee_type"} {
		v.SetDefault("fields."+key, 0)
	}

	v.SetDefault("profile.email_domain", "")
	v.SetDefault("profile.fold_diacritics", false)

	v.SetDefault("directory.url", "")
	v.SetDefault("directory.bind_dn", "")
	v.SetDefault("directory.bind_password", "")
	v.SetDefault("directory.base_dn", "")
	v.SetDefault("directory.user_ou", "")
	v.SetDefault("directory.domain", "")
	v.SetDefault("directory.employee_type_attribute", "employeeType")
	v.SetDefault("directory.secondary_email_attribute", "otherMailbox")
	v.SetDefault("directory.insecure_skip_verify", false)
	v.SetDefault("directory.timeout", 30*time.Second)

	v.SetDefault("groups.mfa", "")
	v.SetDefault("groups.it_equipment", "")
	v.SetDefault("groups.remote_access", "")
	v.SetDefault("groups.office_users", "")

	v.SetDefault("propagation.google_workspace_domain", "")
	v.SetDefault("propagation.gam_path", "gam")
	v.SetDefault("propagation.max_wait_minutes", 15)
	v.SetDefault("propagation.poll_interval_seconds", 30)
	v.SetDefault("propagation.max_age", time.Hour)

	v.SetDefault("schedule.verify_minute", 5)
	v.SetDefault("schedule.notify_minute", 15)
	v.SetDefault("schedule.grace", 5*time.Second)
	v.SetDefault("schedule.post_create_delay", 30*time.Second)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.subject", "Your new account")
	v.SetDefault("mail.ssl", false)
	v.SetDefault("mail.credential_file", filepath.Join(home, ".onboard", "smtp.cred"))

	v.SetDefault("notification.company_name", "")

	v.SetDefault("output.csv_path", "pending_hires.csv")

	v.SetDefault("sftp.host", "")
	v.SetDefault("sftp.port", 22)
	v.SetDefault("sftp.user", "")
	v.SetDefault("sftp.pass", "")
	v.SetDefault("sftp.remote_dir", "/")
	v.SetDefault("sftp.insecure_ignore_host_key", false)
	v.SetDefault("sftp.known_hosts_file", filepath.Join(home, ".ssh", "known_hosts"))
	v.SetDefault("sftp.timeout", 20*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", logging.DefaultDir())
}

// ValidateHelpdeskConfig validates the settings of the selected ticketing backend.
func ValidateHelpdeskConfig(config *Config) error {
	var missingVars []string

	h := config.Helpdesk
	if h.FormName == "" {
		missingVars = append(missingVars, "helpdesk.form_name")
	}

	switch h.Backend {
	case "zendesk":
		if h.Zendesk.Subdomain == "" && h.Zendesk.BaseURL == "" {
			missingVars = append(missingVars, "helpdesk.zendesk.subdomain")
		}
		if h.Zendesk.OAuthToken == "" {
			if h.Zendesk.Email == "" {
				missingVars = append(missingVars, "ZENDESK_EMAIL")
			}
			if h.Zendesk.Token == "" {
				missingVars = append(missingVars, "ZENDESK_TOKEN")
			}
		}
	case "jira":
		if h.Jira.URL == "" {
			missingVars = append(missingVars, "JIRA_URL")
		}
		if h.Jira.Username == "" {
			missingVars = append(missingVars, "JIRA_USERNAME")
		}
		if h.Jira.Token == "" {
			missingVars = append(missingVars, "JIRA_TOKEN")
		}
		if h.Jira.Project == "" {
			missingVars = append(missingVars, "helpdesk.jira.project")
		}
		// Jira carries the intake form only in the request type field.
		if h.Jira.RequestTypeField <= 0 {
			missingVars = append(missingVars, "helpdesk.jira.request_type_field")
		}
	default:
		return fmt.Errorf("unsupported helpdesk backend %q (expected zendesk or jira)", h.Backend)
	}

	if config.Profile.EmailDomain == "" {
		missingVars = append(missingVars, "profile.email_domain")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %v", missingVars)
	}

	return nil
}

// ValidateDirectoryConfig validates Active Directory settings and the group layout.
func ValidateDirectoryConfig(config *Config) error {
	var missingVars []string

	d := config.Directory
	if d.URL == "" {
		missingVars = append(missingVars, "directory.url")
	}
	if d.BindDN == "" {
		missingVars = append(missingVars, "directory.bind_dn")
	}
	if d.BindPassword == "" {
		missingVars = append(missingVars, "LDAP_BIND_PASSWORD")
	}
	if d.BaseDN == "" {
		missingVars = append(missingVars, "directory.base_dn")
	}
	if d.UserOU == "" {
		missingVars = append(missingVars, "directory.user_ou")
	}
	if d.Domain == "" {
		missingVars = append(missingVars, "directory.domain")
	}
	if config.Groups.MFA == "" {
		missingVars = append(missingVars, "groups.mfa")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %v", missingVars)
	}

	return nil
}

// ValidateMailConfig validates SMTP relay settings.
func ValidateMailConfig(config *Config) error {
	var missingVars []string

	m := config.Mail
	if m.Host == "" {
		missingVars = append(missingVars, "mail.host")
	}
	if m.From == "" {
		missingVars = append(missingVars, "mail.from")
	}
	if m.CredentialFile == "" {
		missingVars = append(missingVars, "mail.credential_file")
	}
	if config.Notification.CompanyName == "" {
		missingVars = append(missingVars, "notification.company_name")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %v", missingVars)
	}

	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("mail.port out of range: %d", m.Port)
	}

	return nil
}

// ValidateSFTPConfig validates the handoff upload target.
func ValidateSFTPConfig(config *Config) error {
	var missingVars []string

	s := config.SFTP
	if s.Host == "" {
		missingVars = append(missingVars, "sftp.host")
	}
	if s.User == "" {
		missingVars = append(missingVars, "sftp.user")
	}
	if s.Pass == "" {
		missingVars = append(missingVars, "SFTP_PASS")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %v", missingVars)
	}

	return nil
}

// ValidateScheduleConfig checks the barrier minutes and polling policy.
func ValidateScheduleConfig(config *Config) error {
	s := config.Schedule
	for name, minute := range map[string]int{"schedule.verify_minute": s.VerifyMinute, "schedule.notify_minute": s.NotifyMinute} {
		if minute < -1 || minute > 59 {
			return fmt.Errorf("%s must be between 0 and 59, or -1 to disable: got %d", name, minute)
		}
	}

	p := config.Propagation
	if p.PollIntervalSeconds <= 0 {
		return fmt.Errorf("propagation.poll_interval_seconds must be positive: got %d", p.PollIntervalSeconds)
	}
	if p.MaxWaitMinutes < 0 {
		return fmt.Errorf("propagation.max_wait_minutes must not be negative: got %d", p.MaxWaitMinutes)
	}

	return nil
}
