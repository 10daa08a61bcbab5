package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/engine"
	"github.com/datallboy/hydrofetch/internal/infra/config"
	"github.com/datallboy/hydrofetch/internal/retry"
)

const apiTimeLayout = "2006-01-02T15:04:05Z"

// Hydrometric queries an OGC API-Features collection station by station and
// stores each station's feature properties as CSV.
type Hydrometric struct {
	Collection string
	Config     config.HydrometricConfig
	Column     config.CollectionConfig

	fetcher engine.Fetcher
	policy  retry.Policy
	sink    diag.Sink
}

func NewHydrometric(collection string, cfg config.HydrometricConfig, deps Deps) (*Hydrometric, error) {
	col, err := lookupModel(cfg.Collections, KindHydrometric, collection)
	if err != nil {
		return nil, err
	}
	if col.DatetimeColumn == "" {
		return nil, fmt.Errorf("%w: eccc_api collection %s needs a datetime_column", domain.ErrConfiguration, collection)
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("%w: eccc_api needs an HTTP fetcher", domain.ErrConfiguration)
	}
	return &Hydrometric{
		Collection: collection,
		Config:     cfg,
		Column:     col,
		fetcher:    deps.Fetcher,
		policy:     deps.Policy,
		sink:       deps.Sink,
	}, nil
}

func (s *Hydrometric) Kind() Kind { return KindHydrometric }

func (s *Hydrometric) Plan(req Request) (*Plan, error) {
	c := s.Config
	if err := requireURL(KindHydrometric, c.URLBase); err != nil {
		return nil, err
	}
	if c.StationCSV == "" {
		return nil, fmt.Errorf("%w: eccc_api station_csv is required", domain.ErrConfiguration)
	}
	stations, err := readStations(resolve(req.OutputDir, c.StationCSV), "ID")
	if err != nil {
		return nil, err
	}

	em := diag.Emitter{Sink: s.sink, SourceID: string(KindHydrometric)}
	if !req.Start.IsZero() && !req.End.IsZero() {
		em.Info("Retrieving %s from %s for the period %s/%s", s.variable(), s.Collection,
			req.Start.UTC().Format(apiTimeLayout), req.End.UTC().Format(apiTimeLayout))
	} else {
		em.Info("Retrieving %s from %s with no time limits", s.variable(), s.Collection)
	}

	dir := filepath.Join(req.OutputDir, s.Collection)
	jobs := make([]domain.Job, 0, len(stations))
	for _, st := range stations {
		id := st.get("ID")
		if id == "" {
			continue
		}
		jobs = append(jobs, domain.NewJob(string(KindHydrometric), s.itemsURL(id, req), dir, id+".csv"))
	}

	return &Plan{Jobs: jobs, Retriever: s, RequireAny: true}, nil
}

func (s *Hydrometric) variable() string {
	if len(s.Column.DownloadVariables) == 0 {
		return "data"
	}
	return s.Column.DownloadVariables[0]
}

func (s *Hydrometric) itemsURL(station string, req Request) string {
	q := url.Values{}
	q.Set("STATION_NUMBER", station)
	q.Set("limit", strconv.Itoa(s.Config.Limit))
	if !req.Start.IsZero() && !req.End.IsZero() {
		q.Set("datetime", req.Start.UTC().Format(apiTimeLayout)+"/"+req.End.UTC().Format(apiTimeLayout))
	}
	return strings.TrimRight(s.Config.URLBase, "/") + "/" + s.Collection + "/items?" + q.Encode()
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// Retrieve runs the station query under the retry policy and writes the
// result. An empty feature list is an answer, not a failure.
func (s *Hydrometric) Retrieve(ctx context.Context, job domain.Job) (engine.Transfer, error) {
	em := diag.Emitter{Sink: s.sink, SourceID: job.SourceID}
	policy := s.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		em.Warn("Attempt %d/%d failed: %v", attempt, policy.Attempts, err)
		em.Info("Retrying in %s...", delay)
	}

	var fc featureCollection
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		fc = featureCollection{}
		return s.query(ctx, job, &fc)
	})
	if err != nil {
		return engine.Transfer{Attempts: attempts}, err
	}

	station := strings.TrimSuffix(filepath.Base(job.Destination), ".csv")
	if len(fc.Features) == 0 {
		em.Warn("Station %s has no %s data for the chosen time period.", station, s.variable())
		return engine.Transfer{Attempts: attempts}, fmt.Errorf("station %s: %w", station, domain.ErrNoData)
	}

	var buf bytes.Buffer
	if err := s.writeCSV(&buf, fc); err != nil {
		return engine.Transfer{Attempts: attempts}, &engine.FetchError{Class: domain.ClassOther, Err: err}
	}
	n, err := engine.WriteFile(ctx, job, &buf)
	if err != nil {
		return engine.Transfer{Bytes: n, Attempts: attempts}, err
	}
	em.Info("%s from %s for station %s output to %s", s.variable(), s.Collection, station, job.Destination)
	return engine.Transfer{Bytes: n, Attempts: attempts}, nil
}

func (s *Hydrometric) query(ctx context.Context, job domain.Job, fc *featureCollection) error {
	body, err := s.fetcher.Fetch(ctx, job)
	if err != nil {
		var fe *engine.FetchError
		if errors.As(err, &fe) && isFinalStatus(fe.StatusCode) {
			return retry.Permanent(err)
		}
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(fc); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &engine.FetchError{Class: domain.ClassOther, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// isFinalStatus is true for client errors that a retry will not change.
func isFinalStatus(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

// writeCSV puts the datetime column first and the remaining properties in
// name order.
func (s *Hydrometric) writeCSV(buf *bytes.Buffer, fc featureCollection) error {
	dt := s.Column.DatetimeColumn
	seen := map[string]bool{dt: true}
	var rest []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	header := append([]string{dt}, rest...)

	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, f := range fc.Features {
		for i, col := range header {
			row[i] = cell(f.Properties[col])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
