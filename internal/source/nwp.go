package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/infra/config"
)

// NWP builds jobs for the ECCC numerical weather prediction models. One
// GRIB2 file per parameter and lead time of the most recent model run.
type NWP struct {
	Model  string
	Config config.NWPConfig
}

func (s *NWP) Kind() Kind { return KindNWP }

func (s *NWP) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindNWP, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindNWP, "interval", c.Interval); err != nil {
		return nil, err
	}
	if err := requirePositive(KindNWP, "timestep", c.Timestep); err != nil {
		return nil, err
	}

	day, hour := runTime(req.Now, c.DelayHours, c.Interval)

	var jobs []domain.Job
	for i, param := range c.Parameters {
		first := 0
		if len(c.FirstLeadTimes) > 0 {
			if i >= len(c.FirstLeadTimes) {
				break
			}
			first = c.FirstLeadTimes[i]
		}

		for lead := first; lead < c.LeadTime+c.Timestep; lead += c.Timestep {
			leadStr := fmt.Sprintf("%03d", lead)
			filename, err := nwpFilename(s.Model, param, day, hour, leadStr)
			if err != nil {
				return nil, err
			}
			url := c.URLBase + day + c.URLDetail + hour + "/" + leadStr + "/" + filename
			jobs = append(jobs, domain.NewJob(string(KindNWP), url, req.OutputDir, filename))
		}
	}
	return &Plan{Jobs: jobs}, nil
}

// runTime is the day and the model run hour, floored to interval, of the
// latest run expected to be published delayHours after it started.
func runTime(now time.Time, delayHours, interval int) (string, string) {
	ref := now.UTC().Add(-time.Duration(delayHours) * time.Hour)
	hour := interval * (ref.Hour() / interval)
	return dayString(ref), fmt.Sprintf("%02d", hour)
}

func nwpFilename(model, param, day, hour, lead string) (string, error) {
	m := strings.ToUpper(model)
	// HRDPS before RDPS, the names nest
	switch {
	case strings.Contains(m, "HRDPS"):
		return day + "T" + hour + "Z_MSC_HRDPS_" + param + "_RLatLon0.0225_PT" + lead + "H.grib2", nil
	case strings.Contains(m, "RDPS"):
		return "CMC_reg_" + param + "_ps10km_" + day + hour + "_P" + lead + ".grib2", nil
	case strings.Contains(m, "GDPS"):
		return "CMC_glb_" + param + "_latlon.15x.15_" + day + hour + "_P" + lead + ".grib2", nil
	case strings.Contains(m, "REPS"):
		return day + "T" + hour + "Z_MSC_REPS_" + param + "_RLatLon0.09x0.09_PT" + lead + "H.grib2", nil
	case strings.Contains(m, "GEPS"):
		return "CMC_geps-raw_" + param + "_latlon0p5x0p5_" + day + hour + "_P" + lead + "_allmbrs.grib2", nil
	default:
		return "", fmt.Errorf("%w: unknown model: %s", domain.ErrConfiguration, model)
	}
}
