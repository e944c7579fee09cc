// Package env reads settings from the process environment.
package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/gruntwork-io/go-commons/env"
)

// ParseEnvs converts `KEY=value` pairs, as returned by os.Environ, into a map.
func ParseEnvs(envs []string) map[string]string {
	parsed := make(map[string]string, len(envs))

	for _, pair := range envs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		parsed[strings.TrimSpace(key)] = val
	}

	return parsed
}

// GetBoolEnv returns the environment value converted to boolean type, or the fallback if the variable is not present.
func GetBoolEnv(key string, fallback bool) bool {
	val, _ := LookupEnv(key)
	return env.GetBool(val, fallback)
}

// GetIntEnv returns the environment value converted to integer type, or the fallback if the variable is not present.
func GetIntEnv(key string, fallback int) int {
	if val, ok := LookupEnv(key); ok {
		if num, err := strconv.Atoi(val); err == nil {
			return num
		}
	}

	return fallback
}

// GetStringEnv returns an environment variable by the given key, or the fallback if the variable is not present.
func GetStringEnv(key string, fallback string) string {
	val, _ := LookupEnv(key)
	return env.GetString(val, fallback)
}

// LookupEnv behaves the same as `os.LookupEnv`, but additionally trims spaces in the value.
func LookupEnv(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)

	return val, ok && val != ""
}
