package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
)

const (
	areaFeed = "area_code\tarea_name\tdisplay_level\tselectable\tsort_sequence\n" +
		"0000\tU.S. city average\t0\tT\t1\n" +
		"S100\tNortheast Size Class A\t1\tT\t2\n" +
		"S200\tMidwest\t1\tT\t3\n" +
		"S300\tSouth\t1\tT\t4\n"
	itemFeed = "item_code\titem_name\tdisplay_level\tselectable\tsort_sequence\n" +
		"SA0\tAll items\t0\tT\t1\n" +
		"SAF\tFood and beverages\t1\tT\t2\n" +
		"SEFV\tFood away from home\t2\tT\t3\n" +
		"SAH\tHousing\t1\tT\t4\n"
)

// setFeedEnv writes both reference feeds to a temp dir and points the config
// at them. It returns the data directory.
func setFeedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	areaPath := filepath.Join(dir, "cu.area")
	itemPath := filepath.Join(dir, "cu.item")
	require.NoError(t, os.WriteFile(areaPath, []byte(areaFeed), 0o600))
	require.NoError(t, os.WriteFile(itemPath, []byte(itemFeed), 0o600))

	dataDir := filepath.Join(dir, "data")
	t.Setenv("AREA_FEED", areaPath)
	t.Setenv("ITEM_FEED", itemPath)
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("LOG_LEVEL", "error")
	return dataDir
}

func TestLoadCatalog_FiltersAndSavesIntermediates(t *testing.T) {
	dataDir := setFeedEnv(t)
	cfg, logger, err := setup()
	require.NoError(t, err)

	catalog, err := loadCatalog(context.Background(), cfg, logger, true)
	require.NoError(t, err)

	assert.Len(t, catalog.Geographies, 2)
	assert.Len(t, catalog.Items, 2)
	name, ok := catalog.ItemName("SAH")
	assert.True(t, ok)
	assert.Equal(t, "Housing", name)

	area, err := os.ReadFile(filepath.Join(dataDir, "cu_area.csv"))
	require.NoError(t, err)
	assert.Equal(t, "area_code,area_name\n0000,U.S. city average\nS100,Northeast Size Class A\nS200,Midwest\nS300,South\n", string(area))
	assert.FileExists(t, filepath.Join(dataDir, "cu_item.csv"))
}

func TestLoadCatalog_MissingFeed(t *testing.T) {
	setFeedEnv(t)
	t.Setenv("ITEM_FEED", filepath.Join(t.TempDir(), "missing"))
	cfg, logger, err := setup()
	require.NoError(t, err)

	_, err = loadCatalog(context.Background(), cfg, logger, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item feed")
}

func TestCodesCommand(t *testing.T) {
	setFeedEnv(t)
	t.Setenv("BATCH_SIZE", "3")

	var out bytes.Buffer
	cmd := codesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "series:   4")
	assert.Contains(t, out.String(), "requests: 2 (batch size 3)")
}

func TestCodesCommand_List(t *testing.T) {
	setFeedEnv(t)

	var out bytes.Buffer
	cmd := codesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--list"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	want := []string{"CUURS200SAF", "CUURS200SAH", "CUURS300SAF", "CUURS300SAH"}
	got := strings.Fields(out.String())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_RequiresAPIKey(t *testing.T) {
	setFeedEnv(t)
	err := run(context.Background(), observability.NewMetricsForTesting(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLS_API_KEY")
}

// fakeBLS answers every query with one observation per requested series.
func fakeBLS(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SeriesID []string `json:"seriesid"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		series := make([]string, len(req.SeriesID))
		for i, id := range req.SeriesID {
			series[i] = fmt.Sprintf(`{"seriesID":%q,"data":[{"year":"2024","period":"M01","periodName":"January","latest":"true","value":"100.0","footnotes":[{}]}]}`, id)
		}
		fmt.Fprintf(w, `{"status":"REQUEST_SUCCEEDED","message":[],"Results":{"series":[%s]}}`, strings.Join(series, ","))
	}))
}

func TestRun_EndToEnd(t *testing.T) {
	dataDir := setFeedEnv(t)
	srv := fakeBLS(t)
	defer srv.Close()

	t.Setenv("BLS_API_KEY", "test-key")
	t.Setenv("BLS_API_URL", srv.URL)
	t.Setenv("BATCH_SIZE", "3")
	t.Setenv("REQUEST_DELAY", "0s")

	require.NoError(t, run(context.Background(), observability.NewMetricsForTesting(), false))
	// A second run appends the same rows; --truncate clears them first.
	require.NoError(t, run(context.Background(), observability.NewMetricsForTesting(), true))

	f, err := os.Open(filepath.Join(dataDir, "cpi_data.csv"))
	require.NoError(t, err)
	defer f.Close()

	rep, err := validateOutput(f)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.rows)
	assert.True(t, rep.passed())
	for _, p := range rep.phases {
		assert.Empty(t, p.warnings, p.name)
	}
}

func TestRun_RefusedKeyAbortsAfterFirstCall(t *testing.T) {
	dataDir := setFeedEnv(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"status":"REQUEST_NOT_PROCESSED","message":["The key:bad provided by the User is invalid."],"Results":{}}`)
	}))
	defer srv.Close()

	t.Setenv("BLS_API_KEY", "bad")
	t.Setenv("BLS_API_URL", srv.URL)
	t.Setenv("BATCH_SIZE", "1")
	t.Setenv("REQUEST_DELAY", "0s")

	err := run(context.Background(), observability.NewMetricsForTesting(), false)
	require.ErrorIs(t, err, domain.ErrRequestRefused)
	assert.Equal(t, int32(1), calls.Load())
	assert.NoFileExists(t, filepath.Join(dataDir, "cpi_data.csv"))
}
