package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadCSV reads a headered CSV file into a table, splitting off the named
// response column. Column types are inferred: a column is continuous when
// every non-empty cell parses as a number, categorical otherwise.
// The response values are returned as raw strings for the caller to interpret.
func LoadCSV(path, response string) (*Table, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, response)
}

// ReadCSV is LoadCSV for an already-open reader.
func ReadCSV(r io.Reader, response string) (*Table, []string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("csv needs a header and at least one row")
	}

	header := records[0]
	body := records[1:]

	respCol := -1
	for i, h := range header {
		if h == response {
			respCol = i
		}
	}
	if response != "" && respCol < 0 {
		return nil, nil, fmt.Errorf("response column %q not found", response)
	}

	// Infer column types from the body.
	types := make([]ColumnType, len(header))
	for c := range header {
		types[c] = Continuous
		for _, rec := range body {
			if rec[c] == "" {
				continue
			}
			if _, err := strconv.ParseFloat(rec[c], 64); err != nil {
				types[c] = Categorical
				break
			}
		}
	}

	var names []string
	var featTypes []ColumnType
	for c, h := range header {
		if c == respCol {
			continue
		}
		names = append(names, h)
		featTypes = append(featTypes, types[c])
	}

	tbl, err := New(Schema{Names: names, Types: featTypes})
	if err != nil {
		return nil, nil, err
	}

	var responses []string
	for _, rec := range body {
		row := make(Row, 0, len(names))
		for c := range header {
			if c == respCol {
				responses = append(responses, rec[c])
				continue
			}
			v, err := ParseValue(rec[c], types[c])
			if err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", header[c], err)
			}
			row = append(row, v)
		}
		if err := tbl.Append(row); err != nil {
			return nil, nil, err
		}
	}

	return tbl, responses, nil
}
