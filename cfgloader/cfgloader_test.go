package cfgloader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cfgloader"
)

type testConfig struct {
	Name     string `yaml:"name"     validate:"required"`
	Port     int    `yaml:"port"     default:"8080"`
	Password string `yaml:"password" mask:"true"`
}

func writeConfig(t *testing.T, env, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, env+".yaml"), []byte(content), 0o600))
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		env           string
		content       string
		expected      testConfig
		errorContains string
	}{
		{
			name:     "defaults and env expansion",
			env:      cfgloader.EnvTest,
			content:  "name: orders\npassword: ${CFG_TEST_PASSWORD}\n",
			expected: testConfig{Name: "orders", Port: 8080, Password: "s3cret"},
		},
		{
			name:     "explicit port",
			env:      cfgloader.EnvTest,
			content:  "name: orders\nport: 9000\n",
			expected: testConfig{Name: "orders", Port: 9000},
		},
		{
			name:          "missing required field",
			env:           cfgloader.EnvTest,
			content:       "port: 9000\n",
			errorContains: "invalid fields in test config",
		},
		{
			name:          "invalid environment",
			env:           "qa",
			content:       "name: orders\n",
			errorContains: "ENVIRONMENT env variable is not set or invalid",
		},
		{
			name:          "broken yaml",
			env:           cfgloader.EnvTest,
			content:       "name: [orders\n",
			errorContains: "yaml",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			dir := writeConfig(t, tc.env, tc.content)
			t.Setenv("ENVIRONMENT", tc.env)
			t.Setenv("CFG_TEST_PASSWORD", "s3cret")

			// Act
			cfg, err := cfgloader.Load[testConfig](cfgloader.WithConfigDir(dir), cfgloader.WithSilent())

			// Assert
			if tc.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	// Arrange
	t.Setenv("ENVIRONMENT", cfgloader.EnvLocal)

	// Act
	_, err := cfgloader.Load[testConfig](cfgloader.WithConfigDir(t.TempDir()), cfgloader.WithSilent())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadRejectsPointer(t *testing.T) {
	_, err := cfgloader.Load[*testConfig]()

	require.Error(t, err)
}
