package source

import (
	"fmt"
	"strings"

	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/infra/config"
)

const snotelElements = "POR_BEGIN,POR_END/WTEQ::value,PREC::value,PRCP::value,SNWD::value," +
	"TAVG::value,WSPDV::value,TMAX::value,TMIN::value,SRADV::value"

// Snotel builds one period-of-record CSV report per station in the list.
type Snotel struct {
	Config config.SnotelConfig
}

func (s *Snotel) Kind() Kind { return KindSnotel }

func (s *Snotel) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindSnotel, c.URLBase); err != nil {
		return nil, err
	}
	if c.StationCSV == "" {
		return nil, fmt.Errorf("%w: snotel station_csv is required", domain.ErrConfiguration)
	}

	stations, err := readStations(resolve(req.OutputDir, c.StationCSV), "SITE_ID", "STATE", "SITE_NAME")
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.Job, 0, len(stations))
	for _, st := range stations {
		id, state, name := st.get("SITE_ID"), st.get("STATE"), st.get("SITE_NAME")
		if id == "" {
			continue
		}
		url := c.URLBase + id + ":" + state + ":SNTL%7Cid=%22%22%7Cname/" + snotelElements
		filename := strings.ReplaceAll(name, " ", "_") + ".csv"
		jobs = append(jobs, domain.NewJob(string(KindSnotel), url, req.OutputDir, filename))
	}
	return &Plan{Jobs: jobs}, nil
}
