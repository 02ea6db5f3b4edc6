package stop

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// csvColumns are the required columns of a stop file. An optional
// "count" column holds the number of items delivered to a stop.
var csvColumns = []string{"id", "x", "y", "weight", "volume"}

// LoadCSV reads stops from CSV data with a header row. The first data
// row is the depot.
func LoadCSV(r io.Reader) ([]Stop, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("loadCSV: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("loadCSV: missing column %q", c)
		}
	}
	countCol, hasCount := cols["count"]

	var stops []Stop
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loadCSV: line %d: %w", line, err)
		}

		var s Stop
		if s.ID, err = strconv.Atoi(rec[cols["id"]]); err != nil {
			return nil, fmt.Errorf("loadCSV: line %d: id: %w", line, err)
		}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"x", &s.X}, {"y", &s.Y},
			{"weight", &s.Demand.Weight}, {"volume", &s.Demand.Volume},
		}
		for _, f := range fields {
			if *f.dst, err = strconv.ParseFloat(rec[cols[f.name]], 64); err != nil {
				return nil, fmt.Errorf("loadCSV: line %d: %s: %w", line,
					f.name, err)
			}
		}
		if hasCount && rec[countCol] != "" {
			if s.Demand.Count, err = strconv.Atoi(rec[countCol]); err != nil {
				return nil, fmt.Errorf("loadCSV: line %d: count: %w", line, err)
			}
		}
		stops = append(stops, s)
	}

	if len(stops) == 0 {
		return nil, errors.New("loadCSV: no stops")
	}
	return stops, nil
}

// LoadRegistry reads a CSV stop file and builds a Registry using the
// first stop as the depot
func LoadRegistry(filename string) (*Registry, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadRegistry: %w", err)
	}
	defer file.Close()

	stops, err := LoadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("loadRegistry: %v: %w", filename, err)
	}
	return NewRegistry(stops, stops[0].ID)
}

// referenceFile is the JSON layout of a reference plan: a list of tours,
// each listing the identifiers of its stops in visiting order. The depot
// may be omitted from a tour.
type referenceFile struct {
	Tours []struct {
		Stops []int `json:"stops"`
	} `json:"tours"`
}

// LoadReferenceTours reads a reference plan and converts it to tours of
// the Registry, adding the depot at both ends of each tour where absent.
func (r *Registry) LoadReferenceTours(rd io.Reader) ([]Tour, error) {
	var ref referenceFile
	if err := json.NewDecoder(rd).Decode(&ref); err != nil {
		return nil, fmt.Errorf("loadReferenceTours: %w", err)
	}

	tours := make([]Tour, 0, len(ref.Tours))
	for i, rt := range ref.Tours {
		t := Tour{r.depot}
		for _, id := range rt.Stops {
			idx, ok := r.byID[id]
			if !ok {
				return nil, fmt.Errorf("loadReferenceTours: tour %d: "+
					"unknown stop %d", i, id)
			}
			if idx != r.depot {
				t = append(t, idx)
			}
		}
		tours = append(tours, append(t, r.depot))
	}
	return tours, nil
}
