package main

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Dataset is a feature matrix with its labels as read from CSV.
type Dataset struct {
	X        *mat.Dense
	Y        []float64
	Features []string

	// Classes maps label index back to the original text when the label
	// column was not numeric.
	Classes []string
}

// loadCSV reads a dataset file; see readCSV.
func loadCSV(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dataset %s", path)
	}
	defer f.Close()
	ds, err := readCSV(f, labelColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	return ds, nil
}

// readCSV parses a header row followed by numeric rows. The label column
// is labelColumn, or the last column when empty. Non-numeric labels are
// encoded as the index of their sorted distinct values.
func readCSV(r io.Reader, labelColumn string) (*Dataset, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parsing csv")
	}
	if len(rows) < 2 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, errors.NewValueError("readCSV", "need at least one feature and a label column")
	}
	label := len(header) - 1
	if labelColumn != "" {
		label = -1
		for i, h := range header {
			if strings.TrimSpace(h) == labelColumn {
				label = i
			}
		}
		if label < 0 {
			return nil, errors.NewValidationError("label_column", "not found in header", labelColumn)
		}
	}

	ds := &Dataset{}
	for i, h := range header {
		if i != label {
			ds.Features = append(ds.Features, strings.TrimSpace(h))
		}
	}
	data := rows[1:]
	ds.X = mat.NewDense(len(data), len(ds.Features), nil)
	rawLabels := make([]string, len(data))
	for i, row := range data {
		if len(row) != len(header) {
			return nil, errors.NewDimensionError("readCSV", len(header), len(row), 1)
		}
		j := 0
		for c, cell := range row {
			if c == label {
				rawLabels[i] = strings.TrimSpace(cell)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", i+2, header[c])
			}
			ds.X.Set(i, j, v)
			j++
		}
	}
	ds.Y, ds.Classes = encodeLabels(rawLabels)
	return ds, nil
}

func encodeLabels(raw []string) ([]float64, []string) {
	y := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		y[i] = v
	}
	if numeric {
		return y, nil
	}

	seen := make(map[string]bool)
	var classes []string
	for _, s := range raw {
		if !seen[s] {
			seen[s] = true
			classes = append(classes, s)
		}
	}
	sort.Strings(classes)
	index := make(map[string]float64, len(classes))
	for i, c := range classes {
		index[c] = float64(i)
	}
	for i, s := range raw {
		y[i] = index[s]
	}
	return y, classes
}
