package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/hydrofetch/internal/domain"
)

const sampleYAML = `
output_dir: /data/import
max_num_threads: 6
log:
  level: debug
store:
  driver: sqlite
sources:
  eccc_nwp:
    HRDPS:
      url_base: https://dd.weather.gc.ca/model_hrdps/continental/2.5km/
      url_detail: /
      delay: 4
      interval: 6
      lead_time: 48
      timestep: 1
      parameter: [TMP_AGL-2m, APCP_Sfc]
      first_lead_time: [0, 1]
  eccc_radar:
    url_base: https://hpfx.collab.science.gc.ca/
    data_type: composite
    username: radar-user
    password: hunter2
    timestep_minutes: 6
  eccc_api:
    url_base: https://api.weather.gc.ca
    station_csv: stations.csv
    collections:
      hydrometric-daily-mean:
        datetime_column: DATE
        download_variables: [LEVEL]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hydrofetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/data/import", cfg.OutputDir)
	assert.Equal(t, 6, cfg.MaxNumThreads)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "hydrofetch.log", cfg.Log.Path, "default applied")
	assert.Equal(t, "hydrofetch.db", cfg.Store.DSN, "sqlite dsn defaulted")

	// viper folds map keys to lower case
	hrdps, ok := cfg.Sources.NWP["hrdps"]
	require.True(t, ok)
	assert.Equal(t, []string{"TMP_AGL-2m", "APCP_Sfc"}, hrdps.Parameters)
	assert.Equal(t, []int{0, 1}, hrdps.FirstLeadTimes)
	assert.Equal(t, 48, hrdps.LeadTime)

	assert.Equal(t, "radar-user", cfg.Sources.Radar.Username)
	assert.Equal(t, 100000, cfg.Sources.Hydrometric.Limit)
	assert.Equal(t, "DATE", cfg.Sources.Hydrometric.Collections["hydrometric-daily-mean"].DatetimeColumn)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HYDROFETCH_MAX_NUM_THREADS", "2")
	t.Setenv("HYDROFETCH_SOURCES_ECCC_RADAR_PASSWORD", "from-env")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxNumThreads)
	assert.Equal(t, "from-env", cfg.Sources.Radar.Password)
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"zero threads":   "output_dir: /x\nmax_num_threads: 0\n",
		"negative":       "output_dir: /x\nmax_num_threads: -3\n",
		"no output dir":  "output_dir: \"\"\n",
		"unknown driver": "output_dir: /x\nstore:\n  driver: mysql\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRedacted(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Sources.Radar.Password)
	assert.Equal(t, "hunter2", cfg.Sources.Radar.Password, "original untouched")
}
