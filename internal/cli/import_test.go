package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lastclick/internal/ingest"
)

func TestImport_MissingDatabase(t *testing.T) {
	cmd := NewImportCommand(testRootOptions("text"))

	_, _, err := execute(t, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "missing database location")
}

func TestImport_TextFailureIsReportedOnStderr(t *testing.T) {
	stdout, stderr, err := execute(t, NewImportCommand(testRootOptions("text")))
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error [COMMAND_ERROR]: missing database location")
}

func TestImport_DatabaseFromEnvironment(t *testing.T) {
	dbPath := tempDB(t)
	opts := testRootOptions("json")
	opts.Getenv = func(k string) string {
		if k == "LASTCLICK_DB" {
			return dbPath
		}
		return ""
	}

	stdout, _, err := execute(t, NewImportCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, stdout, `"status":"ok"`)
	assert.FileExists(t, dbPath)
}

func TestImport_DatabaseFromConfigFile(t *testing.T) {
	dbPath := tempDB(t)
	cfgPath := filepath.Join(t.TempDir(), "lastclick.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database: "+dbPath+"\n"), 0644))

	opts := testRootOptions("text")
	opts.ConfigFile = cfgPath

	stdout, _, err := execute(t, NewImportCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, stdout, "No new orders.")
	assert.FileExists(t, dbPath)
}

func TestImport_FromStoreEvents(t *testing.T) {
	dbPath := tempDB(t)

	_, _, err := execute(t, NewSeedEventsCommand(testRootOptions("text")), "--db", dbPath, "testdata/events.jsonl")
	require.NoError(t, err)

	cmd := NewImportCommand(testRootOptions("json"))
	stdout, _, err := execute(t, cmd, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ingest.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ingest.Report{
		Fetched:        2,
		Orders:         2,
		Products:       2,
		ReusedProducts: 1,
		OrderProducts:  2,
	}, resp.Data)

	// Second run finds nothing new and still succeeds.
	stdout, _, err = execute(t, NewImportCommand(testRootOptions("text")), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Orders:         0 new, 2 duplicate")
	assert.Contains(t, stdout, "No new orders.")
}

func TestImport_FromInputFile(t *testing.T) {
	dbPath := tempDB(t)

	stdout, _, err := execute(t, NewImportCommand(testRootOptions("json")),
		"--db", dbPath, "--input", "testdata/orders.jsonl")
	require.NoError(t, err)

	var resp struct {
		Data ingest.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ingest.Report{
		Fetched:        4,
		Rejected:       2,
		Duplicates:     1,
		Orders:         1,
		Products:       1,
		ReusedProducts: 1,
		OrderProducts:  1,
	}, resp.Data)

	st := openDB(t, dbPath)
	ops, err := st.ReadAllOrderProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, int64(3), *ops[0].Quantity)
	assert.Equal(t, 10.0, *ops[0].Price)
}

func TestImport_MissingInputFile(t *testing.T) {
	_, _, err := execute(t, NewImportCommand(testRootOptions("text")),
		"--db", tempDB(t), "--input", "testdata/missing.jsonl")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestImport_PushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	var path atomic.Value
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	_, _, err := execute(t, NewImportCommand(testRootOptions("text")),
		"--db", tempDB(t), "--input", "testdata/orders.jsonl", "--pushgateway", gateway.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), pushes.Load())
	assert.Equal(t, "/metrics/job/"+PushJob, path.Load())
}

func TestImport_PushFailureDoesNotFailRun(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	_, _, err := execute(t, NewImportCommand(testRootOptions("text")),
		"--db", tempDB(t), "--pushgateway", gateway.URL)
	require.NoError(t, err)
}

func TestImport_UnopenableDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing-dir", "lastclick.db")

	stdout, _, err := execute(t, NewImportCommand(testRootOptions("json")), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeCommand, resp.Error.Code)
	assert.True(t, Reported(err))
}
