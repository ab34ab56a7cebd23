// Package directory creates accounts for new hires in the corporate directory.
package directory

import (
	"context"
	"fmt"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
)

// Directory is the account store the provisioner works against.
type Directory interface {
	// UserExists reports whether an account with this login name exists.
	UserExists(ctx context.Context, username string) (bool, error)
	// CreateUser creates an enabled account that must change its password at
	// first login. It is not idempotent.
	CreateUser(ctx context.Context, p models.EmployeeProfile, password string) error
	// AddToGroup adds an existing account to a group.
	AddToGroup(ctx context.Context, username, group string) error
}

// Provisioner turns profiles into directory accounts.
type Provisioner struct {
	Directory Directory
	Groups    config.GroupConfig

	// NewPassword defaults to GeneratePassword.
	NewPassword func() (string, error)
}

// NewProvisioner creates a provisioner using the default password generator.
func NewProvisioner(dir Directory, groups config.GroupConfig) *Provisioner {
	return &Provisioner{
		Directory:   dir,
		Groups:      groups,
		NewPassword: GeneratePassword,
	}
}

// Exists checks for an account. A failed check counts as "absent" so that
// the subsequent create attempt surfaces the real problem.
func (p *Provisioner) Exists(ctx context.Context, username string) bool {
	exists, err := p.Directory.UserExists(ctx, username)
	if err != nil {
		logging.Warn("failed to check for existing account, assuming absent",
			"username", username,
			"error", err)
		return false
	}
	return exists
}

// Provision creates the account for a profile unless it already exists, then
// adds it to the mandatory MFA group and to each optional group its flags
// select. Group failures never undo the account.
func (p *Provisioner) Provision(ctx context.Context, profile models.EmployeeProfile) models.ProvisioningResult {
	result := models.ProvisioningResult{Username: profile.Username}

	if p.Exists(ctx, profile.Username) {
		logging.Info("account already exists, skipping",
			"username", profile.Username)
		result.Status = models.ProvisionAlreadyExists
		return result
	}

	newPassword := p.NewPassword
	if newPassword == nil {
		newPassword = GeneratePassword
	}
	password, err := newPassword()
	if err != nil {
		result.Status = models.ProvisionFailed
		result.Err = fmt.Errorf("failed to generate password: %w", err)
		logging.Error("failed to provision account",
			"username", profile.Username,
			"error", result.Err)
		return result
	}

	if err := p.Directory.CreateUser(ctx, profile, password); err != nil {
		result.Status = models.ProvisionFailed
		result.Err = err
		logging.Error("failed to create account",
			"username", profile.Username,
			"error", err)
		return result
	}

	logging.Info("created account",
		"username", profile.Username,
		"department", profile.Department,
		"employee_type", profile.EmployeeType)

	result.Status = models.ProvisionCreated
	result.Credential = password

	if err := p.Directory.AddToGroup(ctx, profile.Username, p.Groups.MFA); err != nil {
		logging.Error("failed to add account to mandatory group",
			"username", profile.Username,
			"group", p.Groups.MFA,
			"error", err)
	}

	for _, g := range p.optionalGroups(profile.Groups) {
		if err := p.Directory.AddToGroup(ctx, profile.Username, g); err != nil {
			logging.Debug("failed to add account to optional group",
				"username", profile.Username,
				"group", g,
				"error", err)
			continue
		}
		logging.Debug("added account to group",
			"username", profile.Username,
			"group", g)
	}

	return result
}

func (p *Provisioner) optionalGroups(flags models.GroupFlags) []string {
	var groups []string
	if flags.ITEquipment && p.Groups.ITEquipment != "" {
		groups = append(groups, p.Groups.ITEquipment)
	}
	if flags.RemoteAccess && p.Groups.RemoteAccess != "" {
		groups = append(groups, p.Groups.RemoteAccess)
	}
	if flags.OfficeUsers && p.Groups.OfficeUsers != "" {
		groups = append(groups, p.Groups.OfficeUsers)
	}
	return groups
}
