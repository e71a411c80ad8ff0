// Package mat persists parameter matrices and run statistics.
package mat

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// WriteParameters writes params to path as CSV, one row per wavefunction component and one column per parameter slot.
func WriteParameters(path string, params mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "")
	}

	rows, cols := params.Dims()
	w := csv.NewWriter(f)
	record := make([]string, cols)
	for i := range rows {
		for j := range cols {
			record[j] = FormatFloat(params.At(i, j))
		}
		if err1 := w.Write(record); err1 != nil && err == nil {
			err = errors.Wrap(err1, fmt.Sprintf("%d", i))
			break
		}
	}
	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// ReadParameters reads a parameter matrix written by WriteParameters.
func ReadParameters(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return nil, errors.Errorf("empty")
	}
	cols := len(records[0])
	if cols == 0 {
		return nil, errors.Errorf("%#v", records[0])
	}

	m := mat.NewDense(len(records), cols, nil)
	for i, record := range records {
		if len(record) != cols {
			return nil, errors.Errorf("%d %#v", i, record)
		}
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %#v", i, record))
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// FormatFloat formats v with the fewest digits that parse back to v.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
