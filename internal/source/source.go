// Package source turns per-source settings into retrieval jobs. Builders are
// pure: given the settings and a reference time they return the same jobs.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/engine"
	"github.com/datallboy/hydrofetch/internal/infra/config"
	"github.com/datallboy/hydrofetch/internal/retry"
)

// Kind names a supported source.
type Kind string

const (
	KindNWP         Kind = "eccc_nwp"
	KindPrecipGrid  Kind = "eccc_precip_grid"
	KindRadar       Kind = "eccc_radar"
	KindSnodas      Kind = "snodas"
	KindSnowcast    Kind = "snowcast"
	KindGlobSnow    Kind = "globsnow"
	KindSnotel      Kind = "snotel"
	KindHydrometric Kind = "eccc_api"
)

var kinds = []Kind{KindNWP, KindPrecipGrid, KindRadar, KindSnodas, KindSnowcast, KindGlobSnow, KindSnotel, KindHydrometric}

// Kinds lists every supported source.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, s)
}

// Request carries what varies between runs.
type Request struct {
	Now       time.Time
	OutputDir string

	// Start and End come from a FEWS run info file, zero when absent.
	Start time.Time
	End   time.Time
}

// Plan is a ready-to-submit batch.
type Plan struct {
	Jobs []domain.Job

	// Retriever overrides the raw file download, nil keeps it.
	Retriever engine.Retriever

	// RequireAny fails the run when no job produced data.
	RequireAny bool
}

type Source interface {
	Kind() Kind
	Plan(req Request) (*Plan, error)
}

// Deps are shared collaborators for sources that talk to APIs.
type Deps struct {
	Fetcher engine.Fetcher
	Policy  retry.Policy
	Sink    diag.Sink
}

// New selects the builder for kind. model picks the NWP model, precipitation
// analysis or API collection, and is ignored by the other sources.
func New(kind Kind, model string, cfg config.SourcesConfig, deps Deps) (Source, error) {
	switch kind {
	case KindNWP:
		m, err := lookupModel(cfg.NWP, kind, model)
		if err != nil {
			return nil, err
		}
		return &NWP{Model: strings.ToUpper(model), Config: m}, nil
	case KindPrecipGrid:
		m, err := lookupModel(cfg.PrecipGrid, kind, model)
		if err != nil {
			return nil, err
		}
		return &PrecipGrid{Model: strings.ToUpper(model), Config: m}, nil
	case KindRadar:
		return &Radar{Config: cfg.Radar}, nil
	case KindSnodas:
		return &Snodas{Config: cfg.Snodas}, nil
	case KindSnowcast:
		return &Snowcast{Config: cfg.Snowcast}, nil
	case KindGlobSnow:
		return &GlobSnow{Config: cfg.GlobSnow}, nil
	case KindSnotel:
		return &Snotel{Config: cfg.Snotel}, nil
	case KindHydrometric:
		h, err := NewHydrometric(model, cfg.Hydrometric, deps)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, kind)
	}
}

// Models lists the configured models for kinds that have them.
func Models(kind Kind, cfg config.SourcesConfig) []string {
	var names []string
	switch kind {
	case KindNWP:
		for k := range cfg.NWP {
			names = append(names, strings.ToUpper(k))
		}
	case KindPrecipGrid:
		for k := range cfg.PrecipGrid {
			names = append(names, strings.ToUpper(k))
		}
	case KindHydrometric:
		for k := range cfg.Hydrometric.Collections {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// viper folds map keys to lower case, so models are matched case-insensitively
func lookupModel[T any](models map[string]T, kind Kind, model string) (T, error) {
	var zero T
	if model == "" {
		return zero, fmt.Errorf("%w: %s needs a model", domain.ErrConfiguration, kind)
	}
	for name, m := range models {
		if strings.EqualFold(name, model) {
			return m, nil
		}
	}
	return zero, fmt.Errorf("%w: %s model %q is not configured", domain.ErrConfiguration, kind, model)
}

// EnsureDirs creates the parent directory of every job's destination.
// Jobs assume their directory exists, this is the caller's half of that deal.
func EnsureDirs(jobs []domain.Job) error {
	seen := make(map[string]bool)
	for _, j := range jobs {
		dir := filepath.Dir(j.Destination)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func requirePositive(kind Kind, name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s %s must be positive, got %d", domain.ErrConfiguration, kind, name, v)
	}
	return nil
}

func requireURL(kind Kind, url string) error {
	if url == "" {
		return fmt.Errorf("%w: %s url_base is required", domain.ErrConfiguration, kind)
	}
	return nil
}

// resolve makes a settings path relative to the output directory.
func resolve(outputDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(outputDir, path)
}

func dayString(t time.Time) string { return t.Format("20060102") }
