package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/formharness/internal/config"
	"github.com/roach88/formharness/internal/harness"
	"github.com/roach88/formharness/internal/rowquery"
	"github.com/roach88/formharness/internal/store"
	"github.com/roach88/formharness/internal/sutdb"
	"github.com/roach88/formharness/internal/testutil"
)

const cancelScenario = `name: items_cancel
description: Cancelling the create form leaves no item behind.
page:
  url: items.php
  open: Create item
  target_table: items
  unique_key: key_
  unique_field: Key
hash_queries:
  - table: items
    order_by: itemid
cases:
  - name: cancel new item
    action: cancel
    fields:
      Name: Calc {unique}
      Key: calc.{unique}
      Formula: last(/host/trap)
`

// The fake console never shows a message, so reading it fails the case
// with an infrastructure error.
const createScenario = `name: items_create
page:
  url: items.php
  open: Create item
  target_table: items
  unique_key: key_
  unique_field: Key
hash_queries:
  - table: items
    order_by: itemid
cases:
  - name: create item
    fields:
      Name: Calc {unique}
      Key: calc.{unique}
`

type cliEnv struct {
	dir string
	env map[string]string

	mu      sync.Mutex
	drivers []*testutil.FakeDriver
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenarios"), 0o755))
	return &cliEnv{
		dir: dir,
		env: map[string]string{
			"FORMHARNESS_BASE_URL":  "http://console.test/",
			"FORMHARNESS_PASSWORD":  "zabbix",
			"FORMHARNESS_DB_DRIVER": "sqlite3",
			"FORMHARNESS_DB_DSN":    filepath.Join(dir, "sut.db"),
			"FORMHARNESS_SCENARIOS": filepath.Join(dir, "scenarios"),
			"FORMHARNESS_RESULTS":   filepath.Join(dir, "results"),
			"FORMHARNESS_HISTORY":   filepath.Join(dir, "history", "runs.db"),
		},
	}
}

func (e *cliEnv) path(elem ...string) string {
	return filepath.Join(append([]string{e.dir}, elem...)...)
}

func (e *cliEnv) writeScenario(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.path("scenarios", name+".yaml"), []byte(body), 0o644))
}

func (e *cliEnv) open(t *testing.T) SessionOpener {
	return func(ctx context.Context, cfg *config.Config, scenario string, logger *zap.Logger) (*harness.Session, error) {
		d := testutil.NewFakeDriver()
		e.mu.Lock()
		e.drivers = append(e.drivers, d)
		e.mu.Unlock()
		return &harness.Session{
			Driver: d,
			DB:     sutdb.New(testutil.NewSUTDB(t), rowquery.DialectSQLite, logger),
			Config: cfg.HarnessConfig(),
			Logger: logger,
			Clock:  harness.NewClock(),
		}, nil
	}
}

func (e *cliEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		LookupEnv: func(k string) (string, bool) {
			v, ok := e.env[k]
			return v, ok
		},
		Logger:   zaptest.NewLogger(t),
		Sessions: e.open(t),
		NoInput:  true,
	}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestRun_Passes(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)

	out, err := e.execute(t, "run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ items_cancel (1/1)")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")

	require.Len(t, e.drivers, 1)
	assert.True(t, e.drivers[0].Closed())
	assert.Contains(t, e.drivers[0].Calls(), "login Admin")

	st, err := store.Open(e.env["FORMHARNESS_HISTORY"])
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.History(context.Background(), store.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "items_cancel", runs[0].Scenario)
	assert.True(t, runs[0].Pass())
}

func TestRun_AbortedScenarioFails(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)
	e.writeScenario(t, "items_create", createScenario)

	out, err := e.execute(t, "run", "--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "1 of 2 scenarios failed")
	assert.Contains(t, out, "✓ items_cancel (1/1)")
	assert.Contains(t, out, "✗ items_create (0/1) aborted")
	assert.NotContains(t, out, "All scenarios passed")
	assert.NoFileExists(t, e.env["FORMHARNESS_HISTORY"])
}

func TestRun_Pattern(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)
	e.writeScenario(t, "items_create", createScenario)

	out, err := e.execute(t, "run", "--no-history", "*_cancel")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "items_create")

	out, err = e.execute(t, "run", "--no-history", "hosts_*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestRun_JSON(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)

	out, err := e.execute(t, "--format", "json", "run")
	require.NoError(t, err, out)

	var sum struct {
		Passed    int `json:"passed"`
		Total     int `json:"total"`
		Scenarios []struct {
			Name  string `json:"name"`
			Pass  bool   `json:"pass"`
			RunID string `json:"run_id"`
		} `json:"scenarios"`
	}
	decodeData(t, out, &sum)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Total)
	require.Len(t, sum.Scenarios, 1)
	assert.True(t, sum.Scenarios[0].Pass)
	assert.Len(t, sum.Scenarios[0].RunID, 36)
}

func TestRun_Golden(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)
	golden := e.path("golden")

	out, err := e.execute(t, "run", "--no-history", "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "no golden file")

	out, err = e.execute(t, "run", "--no-history", "--golden", golden, "--update-golden")
	require.NoError(t, err, out)
	require.FileExists(t, harness.GoldenPath(golden, "items_cancel"))

	out, err = e.execute(t, "run", "--no-history", "--golden", golden)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(harness.GoldenPath(golden, "items_cancel"), []byte("scenario items_cancel\n"), 0o644))
	out, err = e.execute(t, "run", "--no-history", "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestRun_UpdateGoldenNeedsDir(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)

	_, err := e.execute(t, "run", "--update-golden")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_Report(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)
	path := e.path("results", "report.xlsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	out, err := e.execute(t, "run", "--no-history", "--report", path)
	require.NoError(t, err, out)
	assert.FileExists(t, path)
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{"missing base url", "FORMHARNESS_BASE_URL", "base_url is required"},
		{"missing password", "FORMHARNESS_PASSWORD", "password not set"},
		{"missing scenarios", "FORMHARNESS_SCENARIOS", "failed to load scenarios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCLIEnv(t)
			e.writeScenario(t, "items_cancel", cancelScenario)
			delete(e.env, tt.unset)

			_, err := e.execute(t, "run")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, e.drivers)
		})
	}
}

func TestRun_PasswordPrompt(t *testing.T) {
	e := newCLIEnv(t)
	e.writeScenario(t, "items_cancel", cancelScenario)
	delete(e.env, "FORMHARNESS_PASSWORD")

	var asked string
	opts := &RootOptions{
		LookupEnv: func(k string) (string, bool) {
			v, ok := e.env[k]
			return v, ok
		},
		Prompt: func(message string) (string, error) {
			asked = message
			return "zabbix", nil
		},
		Logger:   zaptest.NewLogger(t),
		Sessions: e.open(t),
	}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--no-history"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Password for Admin at http://console.test/:", asked)
}
