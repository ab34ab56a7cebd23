// Package notify delivers one-time credentials to new hires by email.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/internal/secret"
	"github.com/danielolaszy/onboard/pkg/models"
)

// CredentialLoader supplies the relay credentials.
type CredentialLoader interface {
	Load() (secret.Credentials, error)
}

// Dispatcher renders and sends welcome emails. Every failure is logged and
// reported as a skip; none of them is fatal.
type Dispatcher struct {
	Mailer  Mailer
	Secrets CredentialLoader

	From        string
	Subject     string
	CompanyName string
	Portals     []config.PortalLink
	// LoginDomain builds the login email shown to the hire.
	LoginDomain string
}

// NewDispatcher builds a dispatcher from configuration.
func NewDispatcher(mailer Mailer, secrets CredentialLoader, mailCfg config.MailConfig, notifyCfg config.NotificationConfig, loginDomain string) *Dispatcher {
	return &Dispatcher{
		Mailer:      mailer,
		Secrets:     secrets,
		From:        mailCfg.From,
		Subject:     mailCfg.Subject,
		CompanyName: notifyCfg.CompanyName,
		Portals:     notifyCfg.Portals,
		LoginDomain: loginDomain,
	}
}

// Send emails credential to the hire's personal address and reports whether
// the message went out.
func (d *Dispatcher) Send(ctx context.Context, p models.EmployeeProfile, credential string) bool {
	if strings.TrimSpace(p.PersonalEmail) == "" {
		logging.Warn("no recipient address, skipping email",
			"username", p.Username)
		return false
	}
	if credential == "" {
		logging.Warn("no credential for account, skipping email",
			"username", p.Username)
		return false
	}

	creds, err := d.Secrets.Load()
	if err != nil {
		remediation := "run `onboard secret set` as this user"
		if errors.Is(err, secret.ErrDecrypt) {
			remediation = "credentials were stored by another user or the key file changed; run `onboard secret set` again as this user"
		}
		logging.Error("failed to load mail credentials, skipping email",
			"username", p.Username,
			"error", err,
			"remediation", remediation)
		return false
	}

	body, err := RenderWelcome(WelcomeData{
		CompanyName: d.CompanyName,
		FirstName:   p.FirstName,
		Username:    p.Username,
		LoginEmail:  p.Username + "@" + d.LoginDomain,
		Credential:  credential,
		Portals:     d.Portals,
	})
	if err != nil {
		logging.Error("failed to render email, skipping",
			"username", p.Username,
			"error", err)
		return false
	}

	err = d.Mailer.Send(ctx, creds, Message{
		From:    d.From,
		To:      p.PersonalEmail,
		Subject: d.Subject,
		HTML:    body,
	})
	if err != nil {
		logging.Error("failed to send email, skipping",
			"username", p.Username,
			"to", p.PersonalEmail,
			"error", err)
		return false
	}

	logging.Info("sent welcome email",
		"username", p.Username,
		"to", p.PersonalEmail)
	return true
}
