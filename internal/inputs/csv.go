package inputs

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// LoadMatrixCSV reads a numeric matrix from a headerless CSV file where each
// row is one time step and each field one column. Empty fields and the
// literal "nan" load as NaN (absent).
func LoadMatrixCSV(path string) (*Matrix, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, len(records))
	for i, record := range records {
		row := make([]float64, len(record))
		for j, field := range record {
			field = strings.TrimSpace(field)
			if field == "" || strings.EqualFold(field, "nan") {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s row %d field %d: %w", path, i, j, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return FromRows(rows)
}

// LoadBoolMatrixCSV reads a signal matrix from a headerless CSV file.
// Accepted truthy values: "1", "true"; falsy: "0", "false", "".
func LoadBoolMatrixCSV(path string) (*BoolMatrix, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	rows := make([][]bool, len(records))
	for i, record := range records {
		row := make([]bool, len(record))
		for j, field := range record {
			switch strings.ToLower(strings.TrimSpace(field)) {
			case "1", "true":
				row[j] = true
			case "0", "false", "":
				row[j] = false
			default:
				return nil, fmt.Errorf("parse %s row %d field %d: invalid signal %q", path, i, j, field)
			}
		}
		rows[i] = row
	}
	return BoolFromRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are caught by FromRows
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
