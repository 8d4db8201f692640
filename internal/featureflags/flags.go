package featureflags

import (
	"strings"
)

const envPrefix = "FLAG_"

// Known flags.
const (
	SelfRegistration = "self_registration"
	StatusRecheck    = "status_recheck"
	AutoMigrate      = "auto_migrate"
)

// Flags is the resolved set of feature toggles. It is built once at startup
// and passed to the components that branch on it.
type Flags map[string]bool

// FromEnvironment collects FLAG_<NAME>=true/1/yes/on (case-insensitive) entries.
// Any other value, or an unset flag, reads as disabled.
func FromEnvironment(vars map[string]string) Flags {
	flags := Flags{}
	for key, value := range vars {
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if name == "" {
			continue
		}
		flags[name] = parse(value)
	}
	return flags
}

// Enabled reports whether the named flag is on.
func (f Flags) Enabled(name string) bool {
	return f[strings.ToLower(name)]
}

// WithDefault returns the flag value if it was set explicitly, otherwise def.
func (f Flags) WithDefault(name string, def bool) bool {
	if v, ok := f[strings.ToLower(name)]; ok {
		return v
	}
	return def
}

func parse(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
