package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/danielolaszy/onboard/internal/config"
)

const welcomeHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<p>Hi {{.FirstName}},</p>
<p>Welcome to {{.CompanyName}}! Your account is ready.</p>
<table cellpadding="4">
<tr><td><b>Username</b></td><td>{{.Username}}</td></tr>
<tr><td><b>Login email</b></td><td>{{.LoginEmail}}</td></tr>
<tr><td><b>Temporary password</b></td><td><code>{{.Credential}}</code></td></tr>
</table>
<p>You will be asked to choose a new password the first time you sign in.</p>
{{- if .Portals}}
<p>Useful links:</p>
<ul>
{{- range .Portals}}
<li><a href="{{.URL}}">{{.Name}}</a></li>
{{- end}}
</ul>
{{- end}}
<p>The {{.CompanyName}} IT team</p>
</body>
</html>
`

var welcomeTemplate = template.Must(template.New("welcome").Parse(welcomeHTML))

// WelcomeData fills the welcome email.
type WelcomeData struct {
	CompanyName string
	FirstName   string
	Username    string
	LoginEmail  string
	Credential  string
	Portals     []config.PortalLink
}

// RenderWelcome renders the welcome email body.
func RenderWelcome(data WelcomeData) (string, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render welcome email: %w", err)
	}
	return buf.String(), nil
}
