package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gruntwork-io/lz-teardown/pkg/env"
)

func TestParseEnvs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		vars     []string
		expected map[string]string
	}{
		{[]string{}, map[string]string{}},
		{[]string{"foobar"}, map[string]string{}},
		{[]string{"foo=bar"}, map[string]string{"foo": "bar"}},
		{[]string{"foo=bar", "goo=gar"}, map[string]string{"foo": "bar", "goo": "gar"}},
		{[]string{"foo   =bar   "}, map[string]string{"foo": "bar   "}},
		{[]string{"foo=composite=bar"}, map[string]string{"foo": "composite=bar"}},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, env.ParseEnvs(tc.vars))
	}
}

// The tests below modify the process environment and cannot run in parallel.

func TestGetBoolEnv(t *testing.T) {
	testCases := []struct {
		value    string
		fallback bool
		expected bool
	}{
		{"", false, false},
		{"", true, true},
		{"  true  ", false, true},
		{"FALSE", true, false},
		{"1", false, true},
		{"foo", true, true},
	}

	for _, tc := range testCases {
		t.Setenv("LZT_TEST_BOOL", tc.value)
		assert.Equal(t, tc.expected, env.GetBoolEnv("LZT_TEST_BOOL", tc.fallback), "value %q", tc.value)
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("LZT_TEST_INT", "10")
	assert.Equal(t, 10, env.GetIntEnv("LZT_TEST_INT", 20))

	t.Setenv("LZT_TEST_INT", "foo")
	assert.Equal(t, 15, env.GetIntEnv("LZT_TEST_INT", 15))

	assert.Equal(t, 5, env.GetIntEnv("LZT_TEST_UNSET", 5))
}

func TestGetStringEnv(t *testing.T) {
	t.Setenv("LZT_TEST_STRING", " first ")
	assert.Equal(t, "first", env.GetStringEnv("LZT_TEST_STRING", "second"))
	assert.Equal(t, "second", env.GetStringEnv("LZT_TEST_UNSET", "second"))

	_, ok := env.LookupEnv("")
	assert.False(t, ok)
}
