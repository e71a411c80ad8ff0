package mat

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	tableParams  = "params"
	tableScalars = "scalars"
)

// Disk is a sqlite store of the parameters and statistics of every iteration of a run.
type Disk struct {
	Path string

	db *sql.DB
}

// OpenDisk opens the store at path, creating it if it does not exist.
func OpenDisk(ctx context.Context, path string) (*Disk, error) {
	d := &Disk{Path: path}
	var err error
	d.db, err = newDB(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return d, nil
}

func (d *Disk) Close() error {
	return d.db.Close()
}

// Reset removes every stored iteration.
func (d *Disk) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()
	for _, table := range []string{tableParams, tableScalars} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return errors.Wrap(err, table)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// WriteIteration stores the parameters and named scalars of an iteration, replacing what was stored before for it.
func (d *Disk) WriteIteration(ctx context.Context, iteration int, params mat.Matrix, scalars map[string]float64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE iteration=?`, tableParams)
	if _, err := tx.ExecContext(ctx, sqlStr, iteration); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`INSERT INTO %s (iteration, i, j, v) VALUES (?, ?, ?, ?)`, tableParams)
	rows, cols := params.Dims()
	for i := range rows {
		for j := range cols {
			if _, err := tx.ExecContext(ctx, sqlStr, iteration, i, j, params.At(i, j)); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %d", i, j))
			}
		}
	}

	sqlStr = fmt.Sprintf(`INSERT OR REPLACE INTO %s (iteration, name, v) VALUES (?, ?, ?)`, tableScalars)
	for name, v := range scalars {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("%s %f", name, v)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, iteration, name, v); err != nil {
			return errors.Wrap(err, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Parameters returns the parameters stored for an iteration.
func (d *Disk) Parameters(ctx context.Context, iteration int) (*mat.Dense, error) {
	sqlStr := fmt.Sprintf(`SELECT MAX(i), MAX(j) FROM %s WHERE iteration=?`, tableParams)
	var maxI, maxJ sql.NullInt64
	if err := d.db.QueryRowContext(ctx, sqlStr, iteration).Scan(&maxI, &maxJ); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if !maxI.Valid {
		return nil, errors.Errorf("no parameters at iteration %d", iteration)
	}
	m := mat.NewDense(int(maxI.Int64)+1, int(maxJ.Int64)+1, nil)

	sqlStr = fmt.Sprintf(`SELECT i, j, v FROM %s WHERE iteration=?`, tableParams)
	rows, err := d.db.QueryContext(ctx, sqlStr, iteration)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var i, j int
		var v float64
		if err := rows.Scan(&i, &j, &v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		m.Set(i, j, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

// Scalars returns the values of a named scalar ordered by iteration.
func (d *Disk) Scalars(ctx context.Context, name string) ([]float64, error) {
	sqlStr := fmt.Sprintf(`SELECT v FROM %s WHERE name=? ORDER BY iteration`, tableScalars)
	rows, err := d.db.QueryContext(ctx, sqlStr, name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	vs := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return vs, nil
}

// LastIteration returns the latest stored iteration, or -1 if the store is empty.
func (d *Disk) LastIteration(ctx context.Context) (int, error) {
	sqlStr := fmt.Sprintf(`SELECT MAX(iteration) FROM %s`, tableParams)
	var it sql.NullInt64
	if err := d.db.QueryRowContext(ctx, sqlStr).Scan(&it); err != nil {
		return -1, errors.Wrap(err, "")
	}
	if !it.Valid {
		return -1, nil
	}
	return int(it.Int64), nil
}

func newDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(ctx context.Context, db *sql.DB) error {
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (iteration INTEGER, i INTEGER, j INTEGER, v REAL, PRIMARY KEY (iteration, i, j)) STRICT`, tableParams),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (iteration INTEGER, name TEXT, v REAL, PRIMARY KEY (iteration, name)) STRICT`, tableScalars),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
