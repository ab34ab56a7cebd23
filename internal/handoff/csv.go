// Package handoff reads and writes the pending-hires CSV that carries profiles
// from the export phase to the provisioning phase.
package handoff

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// Header is the column order of the handoff file. Keep it EXACT; operators
// and downstream scripts address columns by these names.
var Header = []string{
	"firstname",
	"lastname",
	"username",
	"department",
	"jobtitle",
	"personalemail",
	"employeetype",
	"manager",
	"ITEquipment",
	"RemoteAccess",
	"OfficeUsers",
}

const (
	flagTrue  = "TRUE"
	flagFalse = "FALSE"
)

// Write writes the header and one row per profile.
func Write(w io.Writer, profiles []models.EmployeeProfile) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, p := range profiles {
		if err := cw.Write(toRow(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes profiles to path through a temporary file in the same
// directory, so readers never observe a half-written handoff.
func WriteFile(path string, profiles []models.EmployeeProfile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, profiles); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move csv into place: %w", err)
	}

	logging.Info("wrote pending hires",
		"path", path,
		"count", len(profiles))
	return nil
}

// Read parses a handoff file. Columns are matched by header name, so an
// operator may reorder them or add extra ones. A byte order mark left behind
// by a spreadsheet editor is ignored.
func Read(r io.Reader) ([]models.EmployeeProfile, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, h := range Header {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	var profiles []models.EmployeeProfile
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if isBlank(row) {
			continue
		}

		get := func(name string) string {
			i := index[name]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}

		profiles = append(profiles, models.EmployeeProfile{
			FirstName:     get("firstname"),
			LastName:      get("lastname"),
			Username:      get("username"),
			Department:    get("department"),
			JobTitle:      get("jobtitle"),
			PersonalEmail: get("personalemail"),
			EmployeeType:  models.EmployeeType(get("employeetype")),
			Manager:       get("manager"),
			Groups: models.GroupFlags{
				ITEquipment:  get("ITEquipment") == flagTrue,
				RemoteAccess: get("RemoteAccess") == flagTrue,
				OfficeUsers:  get("OfficeUsers") == flagTrue,
			},
		})
	}

	return profiles, nil
}

// ReadFile opens and parses a handoff file.
func ReadFile(path string) ([]models.EmployeeProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	profiles, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logging.Debug("read pending hires",
		"path", path,
		"count", len(profiles))
	return profiles, nil
}

func toRow(p models.EmployeeProfile) []string {
	return []string{
		p.FirstName,                 // firstname
		p.LastName,                  // lastname
		p.Username,                  // username
		p.Department,                // department
		p.JobTitle,                  // jobtitle
		p.PersonalEmail,             // personalemail
		string(p.EmployeeType),      // employeetype
		p.Manager,                   // manager
		flag(p.Groups.ITEquipment),  // ITEquipment
		flag(p.Groups.RemoteAccess), // RemoteAccess
		flag(p.Groups.OfficeUsers),  // OfficeUsers
	}
}

func flag(b bool) string {
	if b {
		return flagTrue
	}
	return flagFalse
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
