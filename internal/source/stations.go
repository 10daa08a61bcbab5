package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// station is one row of a station list, keyed by header name.
type station map[string]string

func (s station) get(col string) string { return strings.TrimSpace(s[col]) }

// readStations loads a header-first CSV station list and checks that the
// required columns are present.
func readStations(path string, required ...string) ([]station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: station list: %v", domain.ErrConfiguration, err)
	}
	defer f.Close()
	return parseStations(f, required...)
}

func parseStations(r io.Reader, required ...string) ([]station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: station list is empty", domain.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: station list: %v", domain.ErrConfiguration, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	for _, col := range required {
		found := false
		for _, h := range header {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: station list has no %s column", domain.ErrConfiguration, col)
		}
	}

	var out []station
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: station list: %v", domain.ErrConfiguration, err)
		}
		row := make(station, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}
