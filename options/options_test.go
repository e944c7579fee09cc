package options_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/options"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})

	assert.Equal(t, options.DefaultInstallerStackName, opts.InstallerStackName)
	assert.Equal(t, options.DefaultRoleName, opts.RoleName)
	assert.Equal(t, "AWSAccelerator", opts.Prefix)
	assert.Equal(t, 3, opts.MaxRetries)
	require.NoError(t, opts.Validate())
}

func TestValidateScope(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		modify       func(opts *options.TeardownOptions)
		expectedMode scope.Mode
		expectError  bool
	}{
		{"none", func(*options.TeardownOptions) {}, scope.ModeNone, true},
		{"full destroy", func(opts *options.TeardownOptions) { opts.FullDestroy = true }, scope.ModeFullDestroy, false},
		{"stage", func(opts *options.TeardownOptions) { opts.StageName = "Deploy" }, scope.ModeFromStage, false},
		{"two selectors", func(opts *options.TeardownOptions) {
			opts.FullDestroy = true
			opts.ActionName = "Security"
		}, scope.ModeNone, true},
		{"keep data with delete accelerator", func(opts *options.TeardownOptions) {
			opts.DeleteAccelerator = true
			opts.KeepData = true
		}, scope.ModeDeleteAccelerator, false},
		{"keep data with stage", func(opts *options.TeardownOptions) {
			opts.StageName = "Deploy"
			opts.KeepData = true
		}, scope.ModeNone, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
			tc.modify(opts)

			err := opts.ValidateScope()
			if tc.expectError {
				var conflictErr scope.ScopeConflictError
				require.ErrorAs(t, err, &conflictErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedMode, opts.Filter.Mode)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
	opts.PlanFormat = "yaml"
	require.Error(t, opts.Validate())

	opts = options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
	opts.Parallelism = 0
	require.Error(t, opts.Validate())
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
	opts.Telemetry.TraceExporter = "console"

	clone := opts.Clone()
	clone.Telemetry.TraceExporter = "none"
	clone.StageName = "Deploy"

	assert.Equal(t, "console", opts.Telemetry.TraceExporter)
	assert.Empty(t, opts.StageName)
	assert.NotSame(t, opts.Logger, clone.Logger)
}
