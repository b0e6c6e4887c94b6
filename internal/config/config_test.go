package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

const baseYAML = `
base_url: http://localhost/zabbix
database:
  driver: mysql
  dsn: zabbix:zabbix@tcp(localhost:3306)/zabbix
browser:
  engine: rod
  timeout: 30s
`

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "formharness.yaml", baseYAML)

	cfg, err := Load(LoadOptions{Path: path, EnvFile: writeFile(t, dir, ".env", ""), LookupEnv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/zabbix", cfg.BaseURL)
	assert.Equal(t, "Admin", cfg.User)
	assert.Equal(t, "rod", cfg.Browser.Engine)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.True(t, cfg.Browser.Headless, "defaults survive a partial browser block")
	assert.Equal(t, 1, cfg.Parallel)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "formharness.yaml", baseYAML)
	envFile := writeFile(t, dir, ".env", `
FORMHARNESS_PASSWORD=from-dotenv
FORMHARNESS_USER=dotenv-user
FORMHARNESS_PARALLEL=3
`)

	cfg, err := Load(LoadOptions{
		Path:    path,
		EnvFile: envFile,
		LookupEnv: envMap(map[string]string{
			"FORMHARNESS_USER":     "guest",
			"FORMHARNESS_HEADLESS": "false",
			"FORMHARNESS_TIMEOUT":  "1m",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Password)
	assert.Equal(t, "guest", cfg.User, "process env beats .env")
	assert.Equal(t, 3, cfg.Parallel)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Minute, cfg.Browser.Timeout)
}

func TestLoad_MissingDefaultsAreOptional(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		"FORMHARNESS_BASE_URL":  "http://console.test",
		"FORMHARNESS_DB_DRIVER": "sqlite3",
		"FORMHARNESS_DB_DSN":    "file:sut.db",
	})})
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{
			name: "unknown key",
			yaml: baseYAML + "colour: blue\n",
			want: "field colour not found",
		},
		{
			name: "missing base url",
			yaml: "database: {driver: mysql, dsn: x}\n",
			want: "base_url is required",
		},
		{
			name: "bad engine",
			yaml: baseYAML,
			env:  map[string]string{"FORMHARNESS_BROWSER": "selenium"},
			want: `browser.engine must be one of [chromedp rod], got "selenium"`,
		},
		{
			name: "bad driver",
			yaml: "base_url: http://x\ndatabase: {driver: oracle, dsn: x}\n",
			want: "database.driver must be one of",
		},
		{
			name: "bad parallel",
			yaml: baseYAML,
			env:  map[string]string{"FORMHARNESS_PARALLEL": "0"},
			want: "parallel fails gte=1",
		},
		{
			name: "unparsable bool",
			yaml: baseYAML,
			env:  map[string]string{"FORMHARNESS_HEADLESS": "maybe"},
			want: "FORMHARNESS_HEADLESS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "c.yaml", tt.yaml)
			_, err := Load(LoadOptions{Path: path, EnvFile: writeFile(t, dir, ".env", ""), LookupEnv: envMap(tt.env)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ExplicitFilesMustExist(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoadOptions{Path: filepath.Join(dir, "none.yaml"), LookupEnv: noEnv})
	assert.ErrorContains(t, err, "read config")

	path := writeFile(t, dir, "c.yaml", baseYAML)
	_, err = Load(LoadOptions{Path: path, EnvFile: filepath.Join(dir, "none.env"), LookupEnv: noEnv})
	assert.ErrorContains(t, err, "load ")
}

func TestEnsurePassword(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "http://console.test"

	require.ErrorIs(t, cfg.EnsurePassword(nil), ErrNoPassword)

	var asked string
	require.NoError(t, cfg.EnsurePassword(func(msg string) (string, error) {
		asked = msg
		return "zabbix", nil
	}))
	assert.Equal(t, "Password for Admin at http://console.test:", asked)
	assert.Equal(t, "zabbix", cfg.Password)

	// Already set: not asked again.
	require.NoError(t, cfg.EnsurePassword(func(string) (string, error) {
		t.Fatal("prompted although the password is set")
		return "", nil
	}))

	cfg.Password = ""
	err := cfg.EnsurePassword(func(string) (string, error) { return "", errors.New("interrupt") })
	assert.ErrorContains(t, err, "interrupt")

	cfg.User = ""
	assert.NoError(t, cfg.EnsurePassword(nil), "no login, no password")
}

func TestConversionsAndString(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "http://console.test"
	cfg.Password = "secret"
	cfg.KeepGoing = true

	opts := cfg.BrowserOptions()
	assert.Equal(t, "http://console.test", opts.BaseURL)
	assert.Equal(t, "results", opts.ScreenshotDir)

	hc := cfg.HarnessConfig()
	assert.Equal(t, "Admin", hc.User)
	assert.True(t, hc.KeepGoing)

	assert.NotContains(t, cfg.String(), "secret")
	assert.Contains(t, cfg.String(), "********")
}
