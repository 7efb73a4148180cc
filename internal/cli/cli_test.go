package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "kolo.env")
	require.NoError(t, os.WriteFile(path, []byte("KOLO_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Setenv("KOLO_TEST_ENV_VALUE", "")
	os.Unsetenv("KOLO_TEST_ENV_VALUE")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("KOLO_TEST_ENV_VALUE"))
}

func TestProcessDailyWithMemoryStores(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"process-daily", "--date", "2024-01-01", "--env-file", ""})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		processDailyDate = ""
	})

	require.NoError(t, Execute())

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "2024-01-01", report["date"])
	assert.Equal(t, float64(0), report["processed"])
	assert.Equal(t, "0.00", report["total_amount"])
}

func TestProcessDailyRejectsBadDate(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	rootCmd.SetArgs([]string{"process-daily", "--date", "01/02/2024", "--env-file", ""})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		processDailyDate = ""
	})

	require.Error(t, Execute())
}
