package source

import (
	"fmt"
	"math"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/infra/config"
)

// Radar builds jobs for the ECCC radar composites. The archive needs
// credentials, every job carries them.
type Radar struct {
	Config config.RadarConfig
}

func (s *Radar) Kind() Kind { return KindRadar }

func (s *Radar) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindRadar, c.URLBase); err != nil {
		return nil, err
	}
	if err := requirePositive(KindRadar, "timestep_minutes", c.TimestepMinutes); err != nil {
		return nil, err
	}
	if c.DataType != "composite" {
		return nil, fmt.Errorf("%w: radar data type %q is not supported", domain.ErrConfiguration, c.DataType)
	}

	ref := nearestStep(req.Now.UTC(), c.TimestepMinutes)
	end := ref.Add(-time.Duration(c.DelayMinutes) * time.Minute)
	start := ref.Add(-time.Duration(c.SearchPeriodHours) * time.Hour)
	step := time.Duration(c.TimestepMinutes) * time.Minute

	var jobs []domain.Job
	for t := start; !t.After(end); t = t.Add(step) {
		stamp := t.Format("20060102T1504")
		filename := stamp + "Z_MSC_Radar-Composite_MMHR_1km.tif"
		url := c.URLBase + dayString(t) + "/radar/" + c.DataType + "/" + filename

		job := domain.NewJob(string(KindRadar), url, req.OutputDir, filename).
			WithCredentials(c.Username, c.Password)
		jobs = append(jobs, job)
	}
	return &Plan{Jobs: jobs}, nil
}

// nearestStep rounds t to the closest multiple of stepMinutes past the hour.
func nearestStep(t time.Time, stepMinutes int) time.Time {
	hour := t.Truncate(time.Hour)
	minutes := math.Round(float64(t.Minute())/float64(stepMinutes)) * float64(stepMinutes)
	return hour.Add(time.Duration(minutes) * time.Minute)
}
