// Package report writes measurement results: a CSV result file, console tables and charts,
// Prometheus metrics and a SQLite run history.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/johnsiilver/dispatchcost/measure"
)

// Mode is the benchmark mode of every row: average time per operation.
const Mode = "avgt"

// Header is the first record of a result file.
var Header = []string{"Benchmark", "Mode", "Threads", "Samples", "Score", "Score Error (99.9%)", "Unit"}

// ErrHeader is returned by ReadCSV when the first record isn't Header.
var ErrHeader = errors.New("not a result file")

// Row is one line of a result file.
type Row struct {
	Benchmark string
	Mode      string
	Threads   int
	Samples   int
	Score     float64
	// ScoreError is the half width of the 99.9% confidence interval around Score.
	ScoreError float64
	Unit       string
}

// FromSummaries converts summaries to rows, keeping their order. Forks always run on a single
// thread.
func FromSummaries(sums []measure.Summary) []Row {
	rows := make([]Row, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, Row{
			Benchmark:  s.Strategy,
			Mode:       Mode,
			Threads:    1,
			Samples:    s.Samples,
			Score:      s.Mean,
			ScoreError: s.Error,
			Unit:       s.Unit,
		})
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		r.Benchmark,
		r.Mode,
		strconv.Itoa(r.Threads),
		strconv.Itoa(r.Samples),
		strconv.FormatFloat(r.Score, 'f', 6, 64),
		strconv.FormatFloat(r.ScoreError, 'f', 6, 64),
		r.Unit,
	}
}

// WriteCSV writes the header followed by rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, replacing any existing file.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create result file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("could not write result file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write result file %s: %w", path, err)
	}
	return nil
}

// ReadCSV reads what WriteCSV wrote.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrHeader
		}
		return nil, err
	}
	for i := range Header {
		if head[i] != Header[i] {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i, head[i], Header[i])
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(rec []string) (Row, error) {
	var (
		r   = Row{Benchmark: rec[0], Mode: rec[1], Unit: rec[6]}
		err error
	)
	if r.Threads, err = strconv.Atoi(rec[2]); err != nil {
		return Row{}, fmt.Errorf("bad Threads: %w", err)
	}
	if r.Samples, err = strconv.Atoi(rec[3]); err != nil {
		return Row{}, fmt.Errorf("bad Samples: %w", err)
	}
	if r.Score, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return Row{}, fmt.Errorf("bad Score: %w", err)
	}
	if r.ScoreError, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return Row{}, fmt.Errorf("bad Score Error: %w", err)
	}
	return r, nil
}

// ReadFile reads a result file written by WriteFile.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open result file: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("could not read result file %s: %w", path, err)
	}
	return rows, nil
}
