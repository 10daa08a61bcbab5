package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/engine"
	"github.com/datallboy/hydrofetch/internal/infra/config"
	"github.com/datallboy/hydrofetch/internal/retry"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func addresses(jobs []domain.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Address
	}
	return out
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ECCC_NWP")
	require.NoError(t, err)
	assert.Equal(t, KindNWP, k)

	_, err = ParseKind("era5")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Len(t, Kinds(), 8)
}

func TestNWPPlan(t *testing.T) {
	cfg := config.SourcesConfig{NWP: map[string]config.NWPConfig{
		"hrdps": {
			URLBase:        "https://dd/",
			URLDetail:      "/hrdps/",
			DelayHours:     3,
			Interval:       6,
			LeadTime:       6,
			Timestep:       3,
			Parameters:     []string{"TMP_AGL-2m", "APCP_Sfc"},
			FirstLeadTimes: []int{0, 3},
		},
	}}

	src, err := New(KindNWP, "HRDPS", cfg, Deps{})
	require.NoError(t, err)

	plan, err := src.Plan(Request{Now: at("2024-03-05 14:30"), OutputDir: "/out"})
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 5)
	assert.Nil(t, plan.Retriever)
	assert.False(t, plan.RequireAny)

	first := plan.Jobs[0]
	assert.Equal(t, "https://dd/20240305/hrdps/06/000/20240305T06Z_MSC_HRDPS_TMP_AGL-2m_RLatLon0.0225_PT000H.grib2", first.Address)
	assert.Equal(t, filepath.Join("/out", "20240305T06Z_MSC_HRDPS_TMP_AGL-2m_RLatLon0.0225_PT000H.grib2"), first.Destination)
	assert.Equal(t, "eccc_nwp", first.SourceID)

	// second parameter starts at its own first lead time
	assert.Contains(t, plan.Jobs[3].Address, "/06/003/20240305T06Z_MSC_HRDPS_APCP_Sfc_RLatLon0.0225_PT003H.grib2")
	assert.Contains(t, plan.Jobs[4].Address, "PT006H")
}

func TestNWPRunCrossesMidnight(t *testing.T) {
	src := &NWP{Model: "RDPS", Config: config.NWPConfig{
		URLBase: "https://dd/", URLDetail: "/rdps/", DelayHours: 3, Interval: 12,
		LeadTime: 0, Timestep: 1, Parameters: []string{"TMP_TGL_2"},
	}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 01:00"), OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://dd/20240304/rdps/12/000/CMC_reg_TMP_TGL_2_ps10km_2024030412_P000.grib2"}, addresses(plan.Jobs))
}

func TestNWPFilenames(t *testing.T) {
	cases := map[string]string{
		"GDPS": "CMC_glb_P_latlon.15x.15_2024010100_P003.grib2",
		"REPS": "20240101T00Z_MSC_REPS_P_RLatLon0.09x0.09_PT003H.grib2",
		"GEPS": "CMC_geps-raw_P_latlon0p5x0p5_2024010100_P003_allmbrs.grib2",
	}
	for model, want := range cases {
		got, err := nwpFilename(model, "P", "20240101", "00", "003")
		require.NoError(t, err, model)
		assert.Equal(t, want, got, model)
	}

	_, err := nwpFilename("HRRR", "P", "20240101", "00", "003")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewUnknownModel(t *testing.T) {
	cfg := config.SourcesConfig{NWP: map[string]config.NWPConfig{"rdps": {}}}

	_, err := New(KindNWP, "gdps", cfg, Deps{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(KindNWP, "", cfg, Deps{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNWPRejectsZeroInterval(t *testing.T) {
	src := &NWP{Model: "RDPS", Config: config.NWPConfig{URLBase: "https://dd/", Timestep: 1}}
	_, err := src.Plan(Request{Now: at("2024-03-05 01:00")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestPrecipGridPlan(t *testing.T) {
	cfg := config.SourcesConfig{PrecipGrid: map[string]config.PrecipGridConfig{
		"rdpa": {URLBase: "https://dd/", URLDetail: "/rdpa/6h/", NumDaysBack: 2},
	}}
	src, err := New(KindPrecipGrid, "RDPA", cfg, Deps{})
	require.NoError(t, err)

	plan, err := src.Plan(Request{Now: at("2024-03-05 10:00"), OutputDir: "/out"})
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 8)
	assert.Equal(t, "https://dd/20240304/rdpa/6h/00/20240304T00Z_MSC_RDPA_APCP-Accum6h_Sfc_RLatLon0.09_PT0H.grib2", plan.Jobs[0].Address)
	assert.Contains(t, plan.Jobs[7].Address, "20240305T18Z_MSC_RDPA")
}

func TestPrecipGridHRDPAHourList(t *testing.T) {
	src := &PrecipGrid{Model: "HRDPA", Config: config.PrecipGridConfig{
		URLBase: "https://dd/", URLDetail: "/", NumDaysBack: 1, HourList: []string{"12"},
	}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 10:00"), OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://dd/20240305/12/20240305T12Z_MSC_HRDPA_APCP-Accum6h_Sfc_RLatLon0.0225_PT0H.grib2"}, addresses(plan.Jobs))
}

func TestRadarPlan(t *testing.T) {
	cfg := config.SourcesConfig{Radar: config.RadarConfig{
		URLBase:           "https://radar/",
		DataType:          "composite",
		Username:          "user",
		Password:          "secret",
		DelayMinutes:      30,
		TimestepMinutes:   10,
		SearchPeriodHours: 1,
	}}
	src, err := New(KindRadar, "", cfg, Deps{})
	require.NoError(t, err)

	plan, err := src.Plan(Request{Now: at("2024-03-05 10:52"), OutputDir: "/out"})
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 4)
	assert.Equal(t, "https://radar/20240305/radar/composite/20240305T0950Z_MSC_Radar-Composite_MMHR_1km.tif", plan.Jobs[0].Address)
	assert.Contains(t, plan.Jobs[3].Address, "20240305T1020Z")
	for _, j := range plan.Jobs {
		require.NotNil(t, j.Credentials)
		assert.Equal(t, "user", j.Credentials.Username)
	}
}

func TestRadarRejectsOtherDataTypes(t *testing.T) {
	src := &Radar{Config: config.RadarConfig{URLBase: "https://radar/", DataType: "single_site", TimestepMinutes: 10}}
	_, err := src.Plan(Request{Now: at("2024-03-05 10:52")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNearestStep(t *testing.T) {
	assert.Equal(t, at("2024-03-05 10:50"), nearestStep(at("2024-03-05 10:52"), 10))
	assert.Equal(t, at("2024-03-05 11:00"), nearestStep(at("2024-03-05 10:56"), 10))
	assert.Equal(t, at("2024-03-06 00:00"), nearestStep(at("2024-03-05 23:58"), 6))
}

func TestSnodasPlan(t *testing.T) {
	src := &Snodas{Config: config.SnodasConfig{
		URLBase:      "https://snodas/",
		Parameters:   []string{"swe_", "depth_"},
		FileSuffixes: []string{"_a", "_b"},
		NumDaysBack:  2,
	}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 10:00"), OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://snodas/swe_20240304_a.grib2",
		"https://snodas/depth_20240304_b.grib2",
		"https://snodas/swe_20240305_a.grib2",
		"https://snodas/depth_20240305_b.grib2",
	}, addresses(plan.Jobs))
}

func TestSnodasSuffixMismatch(t *testing.T) {
	src := &Snodas{Config: config.SnodasConfig{URLBase: "u", Parameters: []string{"a"}, NumDaysBack: 1}}
	_, err := src.Plan(Request{Now: at("2024-03-05 10:00")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSnowcastPlan(t *testing.T) {
	src := &Snowcast{Config: config.SnowcastConfig{URLBase: "https://snowcast/", DelayHours: 24, NumDaysBack: 2}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 12:00"), OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://snowcast/swe_20240302010000.asc",
		"https://snowcast/swe_20240303010000.asc",
		"https://snowcast/swe_20240304010000.asc",
	}, addresses(plan.Jobs))
}

func TestGlobSnowPlan(t *testing.T) {
	src := &GlobSnow{Config: config.GlobSnowConfig{URLBase: "https://globsnow/archive/", DelayHours: 24, NumDaysBack: 2}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 12:00"), OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://globsnow/archive/2024/data/GlobSnow_SWE_L3A_20240302_v.1.0.nc.gz",
		"https://globsnow/archive/2024/data/GlobSnow_SWE_L3A_20240303_v.1.0.nc.gz",
		"https://globsnow/archive/2024/data/GlobSnow_SWE_L3A_20240304_v.1.0.nc.gz",
	}, addresses(plan.Jobs))
	assert.Equal(t, filepath.Join("/out", "GlobSnow_SWE_L3A_20240302_v.1.0.nc.gz"), plan.Jobs[0].Destination)
}

func TestGlobSnowYearBoundary(t *testing.T) {
	src := &GlobSnow{Config: config.GlobSnowConfig{URLBase: "https://globsnow", NumDaysBack: 1}}
	plan, err := src.Plan(Request{Now: at("2024-01-01 06:00")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://globsnow/2023/data/GlobSnow_SWE_L3A_20231231_v.1.0.nc.gz",
		"https://globsnow/2024/data/GlobSnow_SWE_L3A_20240101_v.1.0.nc.gz",
	}, addresses(plan.Jobs))
}

func TestGlobSnowNeedsDays(t *testing.T) {
	_, err := (&GlobSnow{Config: config.GlobSnowConfig{URLBase: "u"}}).Plan(Request{Now: at("2024-03-05 10:00")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSnotelPlan(t *testing.T) {
	dir := t.TempDir()
	csv := "SITE_ID,STATE,SITE_NAME\n1000,OR,Annie Springs\n,WA,No Id\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stations.csv"), []byte(csv), 0644))

	src := &Snotel{Config: config.SnotelConfig{URLBase: "https://snotel/", StationCSV: "stations.csv"}}
	plan, err := src.Plan(Request{Now: at("2024-03-05 12:00"), OutputDir: dir})
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 1)

	assert.Equal(t, "https://snotel/1000:OR:SNTL%7Cid=%22%22%7Cname/"+snotelElements, plan.Jobs[0].Address)
	assert.Equal(t, filepath.Join(dir, "Annie_Springs.csv"), plan.Jobs[0].Destination)
}

func TestSnotelMissingColumn(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.csv"), []byte("SITE_ID,STATE\n1,OR\n"), 0644))

	src := &Snotel{Config: config.SnotelConfig{URLBase: "u", StationCSV: filepath.Join(dir, "s.csv")}}
	_, err := src.Plan(Request{OutputDir: "/elsewhere"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	jobs := []domain.Job{
		domain.NewJob("s", "u", filepath.Join(dir, "a", "b"), "x"),
		domain.NewJob("s", "u", filepath.Join(dir, "a", "b"), "y"),
		domain.NewJob("s", "u", filepath.Join(dir, "c"), "z"),
	}
	require.NoError(t, EnsureDirs(jobs))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
	assert.DirExists(t, filepath.Join(dir, "c"))
}

func TestModels(t *testing.T) {
	cfg := config.SourcesConfig{NWP: map[string]config.NWPConfig{"rdps": {}, "hrdps": {}}}
	assert.Equal(t, []string{"HRDPS", "RDPS"}, Models(KindNWP, cfg))
	assert.Empty(t, Models(KindSnodas, cfg))
}

// hydrometricServer answers like the OGC API for a handful of stations.
func hydrometricServer(t *testing.T, flaky *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/daily-mean/items" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		switch r.URL.Query().Get("STATION_NUMBER") {
		case "01AD001":
			w.Write([]byte(`{"features":[
				{"properties":{"DATE":"2024-01-02","DISCHARGE":1.5,"STATION_NUMBER":"01AD001"}},
				{"properties":{"DATE":"2024-01-01","DISCHARGE":null,"STATION_NUMBER":"01AD001","FLAG":"B"}}
			]}`))
		case "01AD002":
			w.Write([]byte(`{"features":[]}`))
		case "01AD003":
			if flaky.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"features":[{"properties":{"DATE":"2024-01-01","DISCHARGE":3}}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func newHydrometric(t *testing.T, dir, url string, stations string, rec *diag.Recorder) *Hydrometric {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hydro.csv"), []byte(stations), 0644))

	cfg := config.HydrometricConfig{
		URLBase:    url,
		StationCSV: "hydro.csv",
		Limit:      10,
		Collections: map[string]config.CollectionConfig{
			"daily-mean": {DatetimeColumn: "DATE", DownloadVariables: []string{"DISCHARGE"}},
		},
	}
	policy := retry.Policy{
		Attempts:      5,
		BackoffFactor: time.Second,
		Sleep:         func(context.Context, time.Duration) error { return nil },
	}
	src, err := NewHydrometric("daily-mean", cfg, Deps{
		Fetcher: engine.NewHTTPFetcher(engine.DefaultHTTPOptions()),
		Policy:  policy,
		Sink:    rec,
	})
	require.NoError(t, err)
	return src
}

func TestHydrometricBatch(t *testing.T) {
	var flaky atomic.Int64
	srv := hydrometricServer(t, &flaky)
	defer srv.Close()

	dir := t.TempDir()
	var rec diag.Recorder
	src := newHydrometric(t, dir, srv.URL, "ID,NAME\n01AD001,a\n01AD002,b\n01AD003,c\n01AD004,d\n", &rec)

	plan, err := src.Plan(Request{Now: at("2024-03-05 12:00"), OutputDir: dir})
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 4)
	assert.True(t, plan.RequireAny)
	assert.Equal(t, srv.URL+"/daily-mean/items?STATION_NUMBER=01AD001&limit=10", plan.Jobs[0].Address)
	require.NoError(t, EnsureDirs(plan.Jobs))

	c, err := engine.NewCoordinator(2, plan.Retriever, &rec)
	require.NoError(t, err)
	outcomes := engine.ByDestination(c.Submit(context.Background(), plan.Jobs).Join())
	out := func(station string) domain.Outcome {
		return outcomes[filepath.Join(dir, "daily-mean", station+".csv")]
	}

	assert.Equal(t, domain.StatusSucceeded, out("01AD001").Status)
	data, err := os.ReadFile(filepath.Join(dir, "daily-mean", "01AD001.csv"))
	require.NoError(t, err)
	assert.Equal(t, "DATE,DISCHARGE,FLAG,STATION_NUMBER\n2024-01-02,1.5,,01AD001\n2024-01-01,,B,01AD001\n", string(data))

	assert.Equal(t, domain.StatusEmpty, out("01AD002").Status)
	assert.NoFileExists(t, filepath.Join(dir, "daily-mean", "01AD002.csv"))

	assert.Equal(t, domain.StatusSucceeded, out("01AD003").Status)
	assert.Equal(t, 3, out("01AD003").Attempts)

	bad := out("01AD004")
	assert.Equal(t, domain.StatusFailed, bad.Status)
	assert.Equal(t, domain.ClassHTTP, bad.Class)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, 1, bad.Attempts, "client errors are not retried")

	var retries int
	for _, e := range rec.Events() {
		if e.Level == diag.LevelWarning && strings.HasPrefix(e.Message, "Attempt ") {
			retries++
		}
	}
	assert.Equal(t, 2, retries)
}

func TestHydrometricNoStationHasData(t *testing.T) {
	var flaky atomic.Int64
	srv := hydrometricServer(t, &flaky)
	defer srv.Close()

	dir := t.TempDir()
	src := newHydrometric(t, dir, srv.URL, "ID\n01AD002\n", &diag.Recorder{})

	plan, err := src.Plan(Request{
		OutputDir: dir,
		Start:     at("2024-01-01 00:00"),
		End:       at("2024-01-31 00:00"),
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Jobs[0].Address, "datetime=2024-01-01T00%3A00%3A00Z%2F2024-01-31T00%3A00%3A00Z")
	require.NoError(t, EnsureDirs(plan.Jobs))

	c, err := engine.NewCoordinator(1, plan.Retriever, nil)
	require.NoError(t, err)
	err = engine.RequireAny(c.Submit(context.Background(), plan.Jobs).Join())
	assert.True(t, errors.Is(err, domain.ErrNoData))
}

func TestNewHydrometricNeedsDatetimeColumn(t *testing.T) {
	cfg := config.HydrometricConfig{Collections: map[string]config.CollectionConfig{"daily-mean": {}}}
	_, err := NewHydrometric("daily-mean", cfg, Deps{Fetcher: engine.NewHTTPFetcher(engine.DefaultHTTPOptions())})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
