// Package series holds the aligned per-stock time series that signal
// detectors read from.
package series

import (
	"math"
	"sort"
	"time"

	"equity-screener/internal/models"
)

// Price column names.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// Series is a date-ascending table of named float columns. Missing values are NaN.
type Series struct {
	StockID string
	Dates   []time.Time
	columns map[string][]float64
	caps    Capabilities
}

// New creates an empty series over the given dates.
func New(stockID string, dates []time.Time) *Series {
	return &Series{
		StockID: stockID,
		Dates:   dates,
		columns: make(map[string][]float64),
		caps:    make(Capabilities),
	}
}

// FromCandles builds a series with OHLCV columns. Candles are sorted by timestamp.
func FromCandles(stockID string, candles []models.Candle) *Series {
	sorted := SortCandles(candles)

	n := len(sorted)
	dates := make([]time.Time, n)
	open, high, low, cl, vol := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range sorted {
		dates[i] = c.Timestamp
		open[i], high[i], low[i], cl[i] = c.Open, c.High, c.Low, c.Close
		vol[i] = float64(c.Volume)
	}

	s := New(stockID, dates)
	s.SetColumn(ColOpen, open)
	s.SetColumn(ColHigh, high)
	s.SetColumn(ColLow, low)
	s.SetColumn(ColClose, cl)
	s.SetColumn(ColVolume, vol)
	return s
}

// SortCandles returns a copy of candles in ascending timestamp order.
func SortCandles(candles []models.Candle) []models.Candle {
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Dates)
}

// Last returns the index of the latest row, or -1 for an empty series.
func (s *Series) Last() int {
	return s.Len() - 1
}

// SetColumn stores a column. Columns shorter than the series are padded with NaN,
// longer ones are truncated.
func (s *Series) SetColumn(name string, values []float64) {
	col := make([]float64, s.Len())
	for i := range col {
		if i < len(values) {
			col[i] = values[i]
		} else {
			col[i] = math.NaN()
		}
	}
	s.columns[name] = col
	s.caps.add(name)
}

// Column returns the raw column and whether it exists.
func (s *Series) Column(name string) ([]float64, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// Has reports whether the column exists.
func (s *Series) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Value returns column[i]. It reports false for an absent column, an
// out-of-range index, or a NaN value.
func (s *Series) Value(name string, i int) (float64, bool) {
	col, ok := s.columns[name]
	if !ok || i < 0 || i >= len(col) {
		return 0, false
	}
	v := col[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Window returns column[from..to] inclusive, or false if the column is
// absent or the range is out of bounds. NaNs are kept.
func (s *Series) Window(name string, from, to int) ([]float64, bool) {
	col, ok := s.columns[name]
	if !ok || from < 0 || to >= len(col) || from > to {
		return nil, false
	}
	return col[from : to+1], true
}

// Columns returns the column names, sorted.
func (s *Series) Columns() []string {
	names := make([]string, 0, len(s.columns))
	for name := range s.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities returns the set of available columns.
func (s *Series) Capabilities() Capabilities {
	return s.caps
}

// MergeIndicators pivots long-format indicator readings into columns aligned
// with the series dates. Readings on dates not in the series are ignored.
func (s *Series) MergeIndicators(values []models.IndicatorValue) {
	index := make(map[string]int, s.Len())
	for i, d := range s.Dates {
		index[d.Format(models.DateLayout)] = i
	}

	cols := make(map[string][]float64)
	for _, v := range values {
		i, ok := index[v.Date.Format(models.DateLayout)]
		if !ok {
			continue
		}
		col, ok := cols[v.Name]
		if !ok {
			col = make([]float64, s.Len())
			for j := range col {
				col[j] = math.NaN()
			}
			cols[v.Name] = col
		}
		col[i] = v.Value
	}

	for name, col := range cols {
		s.SetColumn(name, col)
	}
}
