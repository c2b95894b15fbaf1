package config

import (
	"fmt"
	"os"
	"strings"
)

// EnvPrefix starts every environment variable the studio reads.
const EnvPrefix = "STUDIO_"

// Secret resolves STUDIO_<NAME>. When STUDIO_<NAME>_FILE is set the value
// is read from that file, surrounding whitespace trimmed, and the plain
// variable is ignored. Neither set resolves to "".
func Secret(name string) (string, error) {
	key := EnvPrefix + strings.ToUpper(name)
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			// the path is safe to report, the content never is
			return "", fmt.Errorf("read %s_FILE: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return os.Getenv(key), nil
}

// Credentials is one basic-auth pair.
type Credentials struct {
	User string
	Pass string
}

// Complete reports whether both halves are set.
func (c Credentials) Complete() bool {
	return c.User != "" && c.Pass != ""
}

// RoleCredentials resolves STUDIO_<ROLE>_USER and STUDIO_<ROLE>_PASS.
func RoleCredentials(role string) (Credentials, error) {
	user, err := Secret(role + "_USER")
	if err != nil {
		return Credentials{}, err
	}
	pass, err := Secret(role + "_PASS")
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{User: user, Pass: pass}, nil
}
