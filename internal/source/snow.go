package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/infra/config"
)

// Snodas builds jobs for the NOHRSC SNODAS daily grids.
type Snodas struct {
	Config config.SnodasConfig
}

func (s *Snodas) Kind() Kind { return KindSnodas }

func (s *Snodas) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindSnodas, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindSnodas, "num_days_back", c.NumDaysBack); err != nil {
		return nil, err
	}
	if len(c.Parameters) != len(c.FileSuffixes) {
		return nil, fmt.Errorf("%w: snodas needs one file suffix per parameter", domain.ErrConfiguration)
	}

	ref := req.Now.UTC().AddDate(0, 0, -c.NumDaysBack)

	var jobs []domain.Job
	for d := 0; d < c.NumDaysBack; d++ {
		ref = ref.AddDate(0, 0, 1)
		day := dayString(ref)
		for i, param := range c.Parameters {
			filename := param + day + c.FileSuffixes[i] + ".grib2"
			jobs = append(jobs, domain.NewJob(string(KindSnodas), c.URLBase+filename, req.OutputDir, filename))
		}
	}
	return &Plan{Jobs: jobs}, nil
}

// Snowcast builds jobs for the daily SnowCast SWE grids.
type Snowcast struct {
	Config config.SnowcastConfig
}

func (s *Snowcast) Kind() Kind { return KindSnowcast }

func (s *Snowcast) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindSnowcast, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindSnowcast, "num_days_back", c.NumDaysBack); err != nil {
		return nil, err
	}

	end := req.Now.UTC().Add(-time.Duration(c.DelayHours) * time.Hour)
	start := end.AddDate(0, 0, -c.NumDaysBack)

	var jobs []domain.Job
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		filename := "swe_" + dayString(d) + "010000.asc"
		jobs = append(jobs, domain.NewJob(string(KindSnowcast), c.URLBase+filename, req.OutputDir, filename))
	}
	return &Plan{Jobs: jobs}, nil
}

// GlobSnow builds jobs for the daily GlobSnow L3A SWE files, which are
// grouped by year on the server.
type GlobSnow struct {
	Config config.GlobSnowConfig
}

func (g *GlobSnow) Kind() Kind { return KindGlobSnow }

func (g *GlobSnow) Plan(req Request) (*Plan, error) {
	c := g.Config
	if err := requireURL(KindGlobSnow, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindGlobSnow, "num_days_back", c.NumDaysBack); err != nil {
		return nil, err
	}

	end := req.Now.UTC().Add(-time.Duration(c.DelayHours) * time.Hour)
	start := end.AddDate(0, 0, -c.NumDaysBack)
	base := strings.TrimRight(c.URLBase, "/")

	var jobs []domain.Job
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		filename := "GlobSnow_SWE_L3A_" + dayString(d) + "_v.1.0.nc.gz"
		url := base + "/" + d.Format("2006") + "/data/" + filename
		jobs = append(jobs, domain.NewJob(string(KindGlobSnow), url, req.OutputDir, filename))
	}
	return &Plan{Jobs: jobs}, nil
}
