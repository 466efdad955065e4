package config

import (
	"os"
	"strings"
)

// Mode is the build mode. It selects optional sub-steps inside tasks, never the graph shape.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// DefaultModeEnv is the variable consulted when mode_env is not configured.
const DefaultModeEnv = "NODE_ENV"

// ModeFromEnv reads the named variable once. Only the exact value "production"
// selects production; anything else, including unset, is development.
func ModeFromEnv(name string) Mode {
	if name == "" {
		name = DefaultModeEnv
	}
	if strings.TrimSpace(os.Getenv(name)) == string(ModeProduction) {
		return ModeProduction
	}
	return ModeDevelopment
}

func (m Mode) IsProduction() bool { return m == ModeProduction }
func (m Mode) String() string     { return string(m) }
