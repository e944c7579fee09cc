package cli_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/cli"
	"github.com/gruntwork-io/lz-teardown/cli/commands/uninstall"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

func runApp(t *testing.T, args ...string) (*options.TeardownOptions, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	opts := options.NewTeardownOptionsWithWriters(&stdout, &stderr)
	err := cli.NewApp(opts).RunContext(context.Background(), append([]string{cli.AppName}, args...))

	return opts, stdout.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()

	_, out, err := runApp(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "uninstall")
	assert.Contains(t, out, "plan")
	assert.Contains(t, out, "--log-level")
	assert.NotContains(t, out, "telemetry-trace-exporter")
}

func TestScopeValidationFailsBeforeAWS(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{"no selector", []string{"uninstall"}},
		{"two selectors", []string{"uninstall", "--full-destroy", "--stage-name", "Deploy"}},
		{"stage and action", []string{"plan", "--stage-name", "Deploy", "--action-name", "Operations"}},
		{"keep without delete-accelerator", []string{"uninstall", "--full-destroy", "--keep-data"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, out, err := runApp(t, tc.args...)
			require.Error(t, err)

			var conflictErr scope.ScopeConflictError
			require.ErrorAs(t, err, &conflictErr)

			var exitErr errors.ErrorWithExitCode
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, uninstall.UsageExitCode, exitErr.ExitCode)

			assert.Empty(t, out, "nothing is printed when validation fails")
		})
	}
}

func TestInvalidRunSettings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{"zero parallelism", []string{"uninstall", "--full-destroy", "--parallelism", "0"}},
		{"negative retries", []string{"uninstall", "--full-destroy", "--max-retries", "-1"}},
		{"plan format", []string{"plan", "--full-destroy", "--plan-format", "yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runApp(t, tc.args...)

			var exitErr errors.ErrorWithExitCode
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, uninstall.UsageExitCode, exitErr.ExitCode)
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, _, err := runApp(t, "--log-level", "loud", "uninstall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestDebugFlagSetsLevel(t *testing.T) {
	t.Parallel()

	opts, _, err := runApp(t, "--debug", "--log-format", "json", "uninstall")
	require.Error(t, err)
	assert.Equal(t, log.DebugLevel, opts.Logger.Level())

	opts, _, err = runApp(t, "--debug", "--log-level", "warn", "uninstall")
	require.Error(t, err)
	assert.Equal(t, log.WarnLevel, opts.Logger.Level())
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("LZT_FULL_DESTROY", "true")

	opts, _, err := runApp(t, "uninstall", "--action-name", "Operations")

	var conflictErr scope.ScopeConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.True(t, opts.FullDestroy)
	assert.Equal(t, []string{"--full-destroy", "--action-name"}, conflictErr.Selectors)
}
