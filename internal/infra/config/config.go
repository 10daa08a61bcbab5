package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/datallboy/hydrofetch/internal/domain"
)

const defaultPath = "hydrofetch.yaml"

type Config struct {
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir"`
	MaxNumThreads int    `mapstructure:"max_num_threads" yaml:"max_num_threads"`
	RunInfoFile   string `mapstructure:"run_info_file" yaml:"run_info_file,omitempty"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Diag    DiagConfig    `mapstructure:"diag" yaml:"diag"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Name          string `mapstructure:"name" yaml:"name"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// DiagConfig controls the Delft-FEWS diagnostics document.
type DiagConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	XMLFile string `mapstructure:"xml_file" yaml:"xml_file"`
}

type StoreConfig struct {
	// Driver is "sqlite", "postgres", or "" to keep no history.
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type ArchiveConfig struct {
	BucketURL string `mapstructure:"bucket_url" yaml:"bucket_url"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

// SourcesConfig holds one typed block per supported source.
type SourcesConfig struct {
	NWP         map[string]NWPConfig        `mapstructure:"eccc_nwp" yaml:"eccc_nwp"`
	PrecipGrid  map[string]PrecipGridConfig `mapstructure:"eccc_precip_grid" yaml:"eccc_precip_grid"`
	Radar       RadarConfig                 `mapstructure:"eccc_radar" yaml:"eccc_radar"`
	Snodas      SnodasConfig                `mapstructure:"snodas" yaml:"snodas"`
	Snowcast    SnowcastConfig              `mapstructure:"snowcast" yaml:"snowcast"`
	GlobSnow    GlobSnowConfig              `mapstructure:"globsnow" yaml:"globsnow"`
	Snotel      SnotelConfig                `mapstructure:"snotel" yaml:"snotel"`
	Hydrometric HydrometricConfig           `mapstructure:"eccc_api" yaml:"eccc_api"`
}

// NWPConfig describes one numerical weather prediction model.
type NWPConfig struct {
	URLBase        string   `mapstructure:"url_base" yaml:"url_base"`
	URLDetail      string   `mapstructure:"url_detail" yaml:"url_detail"`
	DelayHours     int      `mapstructure:"delay" yaml:"delay"`
	Interval       int      `mapstructure:"interval" yaml:"interval"`
	LeadTime       int      `mapstructure:"lead_time" yaml:"lead_time"`
	Timestep       int      `mapstructure:"timestep" yaml:"timestep"`
	Parameters     []string `mapstructure:"parameter" yaml:"parameter"`
	FirstLeadTimes []int    `mapstructure:"first_lead_time" yaml:"first_lead_time"`
}

// PrecipGridConfig describes one precipitation analysis (RDPA, HRDPA).
type PrecipGridConfig struct {
	URLBase     string   `mapstructure:"url_base" yaml:"url_base"`
	URLDetail   string   `mapstructure:"url_detail" yaml:"url_detail"`
	NumDaysBack int      `mapstructure:"num_days_back" yaml:"num_days_back"`
	DelayHours  int      `mapstructure:"delay_hours" yaml:"delay_hours"`
	HourList    []string `mapstructure:"hour_list" yaml:"hour_list"`
}

type RadarConfig struct {
	URLBase           string `mapstructure:"url_base" yaml:"url_base"`
	DataType          string `mapstructure:"data_type" yaml:"data_type"`
	Username          string `mapstructure:"username" yaml:"username"`
	Password          string `mapstructure:"password" yaml:"password"`
	DelayMinutes      int    `mapstructure:"delay_minutes" yaml:"delay_minutes"`
	TimestepMinutes   int    `mapstructure:"timestep_minutes" yaml:"timestep_minutes"`
	SearchPeriodHours int    `mapstructure:"search_period_hours" yaml:"search_period_hours"`
}

type SnodasConfig struct {
	URLBase      string   `mapstructure:"url_base" yaml:"url_base"`
	Parameters   []string `mapstructure:"parameters" yaml:"parameters"`
	FileSuffixes []string `mapstructure:"file_suffixes" yaml:"file_suffixes"`
	NumDaysBack  int      `mapstructure:"num_days_back" yaml:"num_days_back"`
}

type SnowcastConfig struct {
	URLBase     string `mapstructure:"url_base" yaml:"url_base"`
	DelayHours  int    `mapstructure:"delay_hours" yaml:"delay_hours"`
	NumDaysBack int    `mapstructure:"num_days_back" yaml:"num_days_back"`
}

// GlobSnowConfig points at the yearly GlobSnow archive directories.
type GlobSnowConfig struct {
	URLBase     string `mapstructure:"url_base" yaml:"url_base"`
	DelayHours  int    `mapstructure:"delay_hours" yaml:"delay_hours"`
	NumDaysBack int    `mapstructure:"num_days_back" yaml:"num_days_back"`
}

type SnotelConfig struct {
	URLBase    string `mapstructure:"url_base" yaml:"url_base"`
	StationCSV string `mapstructure:"station_csv" yaml:"station_csv"`
}

// HydrometricConfig drives the OGC API-Features station queries.
type HydrometricConfig struct {
	URLBase     string                      `mapstructure:"url_base" yaml:"url_base"`
	StationCSV  string                      `mapstructure:"station_csv" yaml:"station_csv"`
	Limit       int                         `mapstructure:"limit" yaml:"limit"`
	Collections map[string]CollectionConfig `mapstructure:"collections" yaml:"collections"`
}

type CollectionConfig struct {
	DatetimeColumn    string   `mapstructure:"datetime_column" yaml:"datetime_column"`
	DownloadVariables []string `mapstructure:"download_variables" yaml:"download_variables"`
}

// Load reads path (or the default locations), a .env file next to the
// working directory, and HYDROFETCH_* environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath
	}

	// 1. Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// In a container without a flag, look in /config
		if path == defaultPath {
			if _, errEx := os.Stat("/config/" + defaultPath); errEx == nil {
				path = "/config/" + defaultPath
			} else {
				return nil, fmt.Errorf("%w: config file not found: %s", domain.ErrConfiguration, path)
			}
		} else {
			return nil, fmt.Errorf("%w: config file not found: %s", domain.ErrConfiguration, path)
		}
	}

	// Credentials usually live in .env rather than the yaml
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set Defaults
	v.SetDefault("output_dir", "./data")
	v.SetDefault("max_num_threads", 10)
	v.SetDefault("log.path", "hydrofetch.log")
	v.SetDefault("log.name", "hydrofetch")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("diag.xml_file", "diag.xml")
	v.SetDefault("server.port", "8080")
	v.SetDefault("sources.eccc_api.limit", 100000)
	v.SetDefault("sources.snowcast.num_days_back", 7)
	v.SetDefault("sources.globsnow.num_days_back", 7)

	// Support Environment Variables
	v.SetEnvPrefix("HYDROFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about
	for _, key := range []string{
		"sources.eccc_radar.username",
		"sources.eccc_radar.password",
		"store.driver",
		"store.dsn",
		"archive.bucket_url",
		"run_info_file",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxNumThreads <= 0 {
		return fmt.Errorf("%w: max_num_threads must be positive, got %d", domain.ErrConfiguration, c.MaxNumThreads)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", domain.ErrConfiguration)
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown store driver %q", domain.ErrConfiguration, c.Store.Driver)
	}

	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = "hydrofetch.db"
	}

	if c.Log.Name == "" {
		c.Log.Name = "hydrofetch"
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Sources.Radar.Password != "" {
		c.Sources.Radar.Password = "********"
	}
	if c.Store.Driver == "postgres" && c.Store.DSN != "" {
		c.Store.DSN = "********"
	}
	return c
}
