package source

import (
	"fmt"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/infra/config"
)

var defaultPrecipHours = []string{"00", "06", "12", "18"}

// PrecipGrid builds jobs for the RDPA/HRDPA 6-hour precipitation analyses
// over the last NumDaysBack days.
type PrecipGrid struct {
	Model  string
	Config config.PrecipGridConfig
}

func (s *PrecipGrid) Kind() Kind { return KindPrecipGrid }

func (s *PrecipGrid) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindPrecipGrid, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindPrecipGrid, "num_days_back", c.NumDaysBack); err != nil {
		return nil, err
	}
	hours := c.HourList
	if len(hours) == 0 {
		hours = defaultPrecipHours
	}

	ref := req.Now.UTC().
		AddDate(0, 0, -c.NumDaysBack).
		Add(-time.Duration(c.DelayHours) * time.Hour)

	var jobs []domain.Job
	for d := 0; d < c.NumDaysBack; d++ {
		ref = ref.AddDate(0, 0, 1)
		day := dayString(ref)

		for _, hour := range hours {
			filename, err := precipFilename(s.Model, day, hour)
			if err != nil {
				return nil, err
			}
			url := c.URLBase + day + c.URLDetail + hour + "/" + filename
			jobs = append(jobs, domain.NewJob(string(KindPrecipGrid), url, req.OutputDir, filename))
		}
	}
	return &Plan{Jobs: jobs}, nil
}

func precipFilename(model, day, hour string) (string, error) {
	switch model {
	case "RDPA":
		return day + "T" + hour + "Z_MSC_RDPA_APCP-Accum6h_Sfc_RLatLon0.09_PT0H.grib2", nil
	case "HRDPA":
		return day + "T" + hour + "Z_MSC_HRDPA_APCP-Accum6h_Sfc_RLatLon0.0225_PT0H.grib2", nil
	default:
		return "", fmt.Errorf("%w: unknown precipitation analysis: %s", domain.ErrConfiguration, model)
	}
}
