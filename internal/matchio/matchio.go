// Package matchio loads point correspondence sets from CSV and JSON files.
package matchio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/homfit/internal/homest"
)

// Correspondence is one source/destination point pair in JSON form.
type Correspondence struct {
	XSrc float64 `json:"xSrc"`
	YSrc float64 `json:"ySrc"`
	XDst float64 `json:"xDst"`
	YDst float64 `json:"yDst"`
}

// Load reads a correspondence file, dispatching on the file extension.
// ".json" selects the JSON array format, everything else is parsed as CSV
// with one "x1,y1,x2,y2" row per correspondence and an optional header row.
func Load(path string) (homest.Matches[float64], error) {
	f, err := os.Open(path)
	if err != nil {
		return homest.Matches[float64]{}, fmt.Errorf("failed to open matches file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ReadJSON(f)
	}
	return ReadCSV(f)
}

// ReadJSON parses a JSON array of correspondences.
func ReadJSON(r io.Reader) (homest.Matches[float64], error) {
	var rows []Correspondence
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return homest.Matches[float64]{}, fmt.Errorf("failed to decode matches JSON: %w", err)
	}

	m := homest.Matches[float64]{
		XSrc: make([]float64, len(rows)),
		YSrc: make([]float64, len(rows)),
		XDst: make([]float64, len(rows)),
		YDst: make([]float64, len(rows)),
	}
	for i, c := range rows {
		m.XSrc[i] = c.XSrc
		m.YSrc[i] = c.YSrc
		m.XDst[i] = c.XDst
		m.YDst[i] = c.YDst
	}
	return m, nil
}

// ReadCSV parses "x1,y1,x2,y2" rows. A non-numeric first row is treated as
// a header and skipped.
func ReadCSV(r io.Reader) (homest.Matches[float64], error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	var m homest.Matches[float64]
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return homest.Matches[float64]{}, fmt.Errorf("failed to read matches CSV: %w", err)
		}
		line++

		vals, perr := parseRow(record)
		if perr != nil {
			if line == 1 {
				// Header row
				continue
			}
			return homest.Matches[float64]{}, fmt.Errorf("line %d: %w", line, perr)
		}

		m.XSrc = append(m.XSrc, vals[0])
		m.YSrc = append(m.YSrc, vals[1])
		m.XDst = append(m.XDst, vals[2])
		m.YDst = append(m.YDst, vals[3])
	}
	return m, nil
}

func parseRow(record []string) ([4]float64, error) {
	var vals [4]float64
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return vals, fmt.Errorf("invalid coordinate %q", field)
		}
		vals[i] = v
	}
	return vals, nil
}
