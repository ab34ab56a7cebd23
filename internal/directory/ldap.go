package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/encoding/unicode"
)

// Active Directory userAccountControl value for an enabled normal account.
const normalAccount = "512"

// conn is the subset of *ldap.Conn used here.
type conn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

// LDAPDirectory implements Directory against Active Directory.
type LDAPDirectory struct {
	cfg  config.DirectoryConfig
	conn conn
}

// DialLDAP connects and binds to the directory.
func DialLDAP(cfg config.DirectoryConfig) (*LDAPDirectory, error) {
	var missingVars []string
	if cfg.URL == "" {
		missingVars = append(missingVars, "directory.url")
	}
	if cfg.BindDN == "" {
		missingVars = append(missingVars, "directory.bind_dn")
	}
	if cfg.BindPassword == "" {
		missingVars = append(missingVars, "LDAP_BIND_PASSWORD")
	}
	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required directory configuration: %v", missingVars)
	}

	logging.Info("directory configuration",
		"url", cfg.URL,
		"bind_dn", cfg.BindDN,
		"bind_password", logging.MaskSensitive(cfg.BindPassword),
		"user_ou", cfg.UserOU)

	l, err := ldap.DialURL(cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}),
		ldap.DialWithTLSConfig(&tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory: %w", err)
	}
	if cfg.Timeout > 0 {
		l.SetTimeout(cfg.Timeout)
	}

	if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to bind to directory: %w", err)
	}

	return &LDAPDirectory{cfg: cfg, conn: l}, nil
}

// Close releases the connection.
func (d *LDAPDirectory) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// UserExists looks the login name up under the base DN.
func (d *LDAPDirectory) UserExists(ctx context.Context, username string) (bool, error) {
	dn, err := d.userDN(ctx, username)
	if err != nil {
		return false, err
	}
	return dn != "", nil
}

// CreateUser adds the account with every attribute in one request, so the
// directory either has the complete account or nothing.
func (d *LDAPDirectory) CreateUser(ctx context.Context, p models.EmployeeProfile, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pwd, err := EncodePassword(password)
	if err != nil {
		return err
	}

	managerDN := ""
	if p.Manager != "" && p.Manager != "Unknown" {
		managerDN, err = d.userDN(ctx, p.Manager)
		if err != nil {
			logging.Warn("failed to look up manager",
				"username", p.Username,
				"manager", p.Manager,
				"error", err)
		} else if managerDN == "" {
			logging.Debug("manager not found in directory",
				"username", p.Username,
				"manager", p.Manager)
		}
	}

	req := d.addRequest(p, pwd, managerDN)
	if err := d.conn.Add(req); err != nil {
		return fmt.Errorf("failed to create %s: %w", req.DN, err)
	}
	return nil
}

// AddToGroup adds the user's DN to the group's member attribute.
func (d *LDAPDirectory) AddToGroup(ctx context.Context, username, group string) error {
	userDN, err := d.userDN(ctx, username)
	if err != nil {
		return err
	}
	if userDN == "" {
		return fmt.Errorf("user %s not found", username)
	}

	groupDN, err := d.findDN(ctx, fmt.Sprintf("(&(objectClass=group)(cn=%s))", ldap.EscapeFilter(group)))
	if err != nil {
		return err
	}
	if groupDN == "" {
		return fmt.Errorf("group %s not found", group)
	}

	req := ldap.NewModifyRequest(groupDN, nil)
	req.Add("member", []string{userDN})
	if err := d.conn.Modify(req); err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", username, group, err)
	}
	return nil
}

func (d *LDAPDirectory) addRequest(p models.EmployeeProfile, encodedPassword, managerDN string) *ldap.AddRequest {
	cn := strings.TrimSpace(p.FirstName + " " + p.LastName)
	dn := fmt.Sprintf("CN=%s,%s", escapeRDN(cn), d.cfg.UserOU)

	req := ldap.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{"top", "person", "organizationalPerson", "user"})

	set := func(attr, value string) {
		if attr == "" || value == "" {
			return
		}
		req.Attribute(attr, []string{value})
	}

	set("cn", cn)
	set("givenName", p.FirstName)
	set("sn", p.LastName)
	set("displayName", cn)
	set("sAMAccountName", p.Username)
	set("userPrincipalName", LoginEmail(p.Username, d.cfg.Domain))
	set("department", p.Department)
	set("title", p.JobTitle)
	set("manager", managerDN)
	set(d.cfg.EmployeeTypeAttribute, string(p.EmployeeType))
	set(d.cfg.SecondaryEmailAttribute, p.PersonalEmail)
	set("unicodePwd", encodedPassword)
	set("userAccountControl", normalAccount)
	set("pwdLastSet", "0")

	return req
}

func (d *LDAPDirectory) userDN(ctx context.Context, username string) (string, error) {
	return d.findDN(ctx, fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(username)))
}

func (d *LDAPDirectory) findDN(ctx context.Context, filter string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"dn"},
		nil,
	)

	res, err := d.conn.Search(req)
	switch {
	case err == nil:
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return "", nil
	case ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && res != nil:
	default:
		return "", fmt.Errorf("directory search %s failed: %w", filter, err)
	}
	if len(res.Entries) == 0 {
		return "", nil
	}
	return res.Entries[0].DN, nil
}

// LoginEmail is the address a new hire signs in with.
func LoginEmail(username, domain string) string {
	return username + "@" + domain
}

// EncodePassword renders a password the way Active Directory expects it in
// unicodePwd: quoted and UTF-16LE encoded.
func EncodePassword(password string) (string, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	s, err := enc.String(`"` + password + `"`)
	if err != nil {
		return "", fmt.Errorf("failed to encode password: %w", err)
	}
	return s, nil
}

// escapeRDN escapes the characters RFC 4514 reserves in an attribute value.
func escapeRDN(v string) string {
	var b strings.Builder
	for i, r := range v {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r):
			b.WriteByte('\\')
		case i == 0 && (r == '#' || r == ' '):
			b.WriteByte('\\')
		case i == len(v)-1 && r == ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
