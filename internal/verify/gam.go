package verify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/danielolaszy/onboard/internal/logging"
)

var (
	userLine     = regexp.MustCompile(`(?m)^\s*User:\s*(\S+)`)
	creationLine = regexp.MustCompile(`(?m)^\s*Creation Time:\s*(\S+)`)
	notFound     = regexp.MustCompile(`(?i)does not exist|not found|unknown user`)
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// GAMLookup queries Google Workspace through the GAM command line tool.
type GAMLookup struct {
	Path string
	Run  CommandRunner
}

// NewGAMLookup creates a lookup running the gam binary at path.
func NewGAMLookup(path string) *GAMLookup {
	if path == "" {
		path = "gam"
	}
	return &GAMLookup{Path: path, Run: execRunner}
}

// LookupUser runs `gam info user <address>`. A user GAM reports as missing
// is not an error.
func (g *GAMLookup) LookupUser(ctx context.Context, address string) (UserInfo, error) {
	out, err := g.Run(ctx, g.Path, "info", "user", address)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && notFound.Match(out) {
			return UserInfo{}, nil
		}
		return UserInfo{}, fmt.Errorf("gam info user %s: %w: %s", address, err, strings.TrimSpace(string(out)))
	}

	info := ParseUserInfo(string(out), address)
	logging.Debug("gam lookup",
		"address", address,
		"exists", info.Exists,
		"created", info.Created)
	return info, nil
}

// ParseUserInfo reads the output of `gam info user`. The user exists when a
// User: line names the address. A missing or malformed Creation Time leaves
// Created zero.
func ParseUserInfo(out, address string) UserInfo {
	m := userLine.FindStringSubmatch(out)
	if m == nil || !strings.EqualFold(m[1], address) {
		return UserInfo{}
	}

	info := UserInfo{Exists: true}
	if c := creationLine.FindStringSubmatch(out); c != nil {
		if t, err := time.Parse(time.RFC3339Nano, c[1]); err == nil {
			info.Created = t
		}
	}
	return info
}
