// Package flags holds the naming helpers shared by the global and command flags.
package flags

import (
	"slices"
	"strings"
)

// LztPrefix prefixes the environment variable of every flag.
const LztPrefix = "LZT"

// Prefix is a chain of name segments joined into flag names and environment variable names.
type Prefix []string

// Prepend returns a new prefix with val in front.
func (prefix Prefix) Prepend(val string) Prefix {
	return append([]string{val}, prefix...)
}

// Append returns a new prefix with val at the end.
func (prefix Prefix) Append(val string) Prefix {
	return append(slices.Clone(prefix), val)
}

// EnvVar returns the environment variable of the flag name, e.g. `LZT_FULL_DESTROY` for `full-destroy`.
func (prefix Prefix) EnvVar(name string) string {
	name = strings.Join(append(slices.Clone(prefix), name), "_")

	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// EnvVars maps EnvVar over names.
func (prefix Prefix) EnvVars(names ...string) []string {
	envVars := make([]string, len(names))

	for i := range names {
		envVars[i] = prefix.EnvVar(names[i])
	}

	return envVars
}

// EnvVarsWithLztPrefix returns the `LZT_` environment variables of the given flag names.
func EnvVarsWithLztPrefix(names ...string) []string {
	return Prefix{LztPrefix}.EnvVars(names...)
}
