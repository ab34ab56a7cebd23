// Package profile turns a ticket's custom fields into an employee profile.
package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/danielolaszy/onboard/pkg/models"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the default for every text attribute the ticket does not supply.
const Unknown = "Unknown"

// maxDepartmentLen is the directory's department attribute budget.
const maxDepartmentLen = 10

var (
	disallowedHandleChars = regexp.MustCompile(`[^a-z0-9.]`)

	fullTimeMarkers = []string{"full time", "fulltime", "full_time", "full-time"}
	partTimeMarkers = []string{"part time", "parttime", "part_time", "part-time"}
)

// Options tunes extraction.
type Options struct {
	// EmailDomain is used to synthesize username@EmailDomain when the ticket
	// carries no personal email.
	EmailDomain string
	// FoldDiacritics maps accented letters to their base letter before
	// handles are stripped to [a-z0-9.].
	FoldDiacritics bool
}

// Extract maps the ticket's custom fields onto a profile. Every attribute is
// resolved independently; a missing or blank field takes its default.
func Extract(t models.Ticket, fields models.FieldMap, opts Options) models.EmployeeProfile {
	firstName := fieldOr(t, fields.FirstName, Unknown)
	lastName := fieldOr(t, fields.LastName, Unknown)

	username := Username(firstName, lastName, opts.FoldDiacritics)

	email := fieldOr(t, fields.PersonalEmail, "")
	if email == "" {
		email = username + "@" + opts.EmailDomain
	}

	return models.EmployeeProfile{
		FirstName:     firstName,
		LastName:      lastName,
		Username:      username,
		PersonalEmail: email,
		Department:    TruncateDepartment(fieldOr(t, fields.Department, Unknown)),
		JobTitle:      fieldOr(t, fields.JobTitle, Unknown),
		EmployeeType:  ClassifyEmployeeType(fieldOr(t, fields.EmployeeType, Unknown)),
		Manager:       ManagerHandle(fieldOr(t, fields.Manager, Unknown), opts.FoldDiacritics),
	}
}

// Username builds lowercase(first).lowercase(last) restricted to [a-z0-9.].
// It does not special-case Unknown names, so an empty ticket yields
// "unknown.unknown".
func Username(firstName, lastName string, fold bool) string {
	return stripHandle(strings.ToLower(firstName)+"."+strings.ToLower(lastName), fold)
}

// ManagerHandle formats a free-text manager name as given.surname. Apostrophes
// and hyphens are removed before tokenizing, every token after the first is
// concatenated into the surname, and a single token is used for both parts.
func ManagerHandle(name string, fold bool) string {
	if name == Unknown {
		return Unknown
	}

	cleaned := strings.NewReplacer("'", "", "’", "", "-", "").Replace(name)
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return Unknown
	}

	given := strings.ToLower(tokens[0])
	surname := given
	if len(tokens) > 1 {
		surname = strings.ToLower(strings.Join(tokens[1:], ""))
	}

	return stripHandle(given+"."+surname, fold)
}

// ClassifyEmployeeType recognizes full-time and part-time wording anywhere in
// the text. Everything else, the Unknown default included, is a contractor.
func ClassifyEmployeeType(raw string) models.EmployeeType {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == strings.ToLower(Unknown) {
		return models.Contractor
	}
	for _, marker := range fullTimeMarkers {
		if strings.Contains(value, marker) {
			return models.FullTime
		}
	}
	for _, marker := range partTimeMarkers {
		if strings.Contains(value, marker) {
			return models.PartTime
		}
	}
	return models.Contractor
}

// TruncateDepartment keeps the first 10 characters of a longer department and
// trims whatever whitespace the cut leaves at the end.
func TruncateDepartment(department string) string {
	if department == Unknown {
		return department
	}
	runes := []rune(department)
	if len(runes) <= maxDepartmentLen {
		return department
	}
	return strings.TrimSpace(string(runes[:maxDepartmentLen]))
}

func stripHandle(s string, fold bool) string {
	if fold {
		s = foldDiacritics(s)
	}
	return disallowedHandleChars.ReplaceAllString(s, "")
}

// foldDiacritics decomposes to NFD and drops combining marks.
func foldDiacritics(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fieldOr returns the trimmed string form of a custom field, or def when the
// field is unmapped, absent or blank.
func fieldOr(t models.Ticket, id int64, def string) string {
	if id == 0 {
		return def
	}
	raw, ok := t.CustomFields[id]
	if !ok {
		return def
	}
	value := strings.TrimSpace(FieldString(raw))
	if value == "" {
		return def
	}
	return value
}

// FieldString renders a decoded JSON custom-field value as text.
func FieldString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(FieldString(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, key := range []string{"value", "name", "displayName"} {
			if inner, ok := v[key]; ok {
				return FieldString(inner)
			}
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}
