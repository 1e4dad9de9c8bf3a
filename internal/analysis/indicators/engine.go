// Package indicators computes technical indicator columns from OHLCV candles.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"equity-screener/internal/models"
)

// Indicator produces one or more named columns aligned with the input candles.
// Rows without enough history are NaN.
type Indicator interface {
	Name() string
	Columns() []string
	Calculate(candles []models.Candle) (map[string][]float64, error)
}

// Result holds the outcome of a single indicator calculation.
type Result struct {
	Name    string
	Columns map[string][]float64
	Err     error
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers    int
	indicators map[string]Indicator
	// column -> indicator name
	owners map[string]string
	mu     sync.RWMutex
}

// NewEngine creates an empty engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:    workers,
		indicators: make(map[string]Indicator),
		owners:     make(map[string]string),
	}
}

// NewDefaultEngine creates an engine with every indicator the signal
// detectors consume, using the standard periods.
func NewDefaultEngine(workers int) *Engine {
	e := NewEngine(workers)
	for _, ind := range []Indicator{
		NewSMA(20), NewSMA(50), NewSMA(200),
		NewMACD(12, 26, 9),
		NewADX(14),
		NewRSI(14),
		NewStochastic(14, 3, 3),
		NewCCI(20),
		NewWilliamsR(14),
		NewBollinger(20, 2),
		NewATR(14),
		NewOBV(),
		NewCMF(20),
		NewMFI(14),
		NewVolumeSMA(20),
	} {
		e.Register(ind)
	}
	return e
}

// Register adds an indicator, replacing any previous one with the same name.
func (e *Engine) Register(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
	for _, col := range ind.Columns() {
		e.owners[col] = ind.Name()
	}
}

// Columns returns every column the engine can produce, sorted.
func (e *Engine) Columns() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cols := make([]string, 0, len(e.owners))
	for col := range e.owners {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// CalculateAll calculates all registered indicators in parallel and merges
// their columns. The first indicator error is returned alongside the
// columns that did succeed.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (map[string][]float64, error) {
	e.mu.RLock()
	list := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		list = append(list, ind)
	}
	e.mu.RUnlock()

	return e.run(ctx, candles, list)
}

// CalculateColumns calculates only the indicators needed to produce the
// requested columns. Unknown column names are ignored.
func (e *Engine) CalculateColumns(ctx context.Context, candles []models.Candle, want []string) (map[string][]float64, error) {
	e.mu.RLock()
	seen := make(map[string]bool)
	list := make([]Indicator, 0, len(want))
	for _, col := range want {
		name, ok := e.owners[col]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		list = append(list, e.indicators[name])
	}
	e.mu.RUnlock()

	return e.run(ctx, candles, list)
}

// Calculate calculates a specific indicator by name.
func (e *Engine) Calculate(ctx context.Context, name string, candles []models.Candle) (map[string][]float64, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("indicator %s not found", name)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

func (e *Engine) run(ctx context.Context, candles []models.Candle, list []Indicator) (map[string][]float64, error) {
	work := make(chan Indicator, len(list))
	results := make(chan Result, len(list))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range work {
				select {
				case <-ctx.Done():
					results <- Result{Name: ind.Name(), Err: ctx.Err()}
				default:
					cols, err := ind.Calculate(candles)
					results <- Result{Name: ind.Name(), Columns: cols, Err: err}
				}
			}
		}()
	}

	for _, ind := range list {
		work <- ind
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	merged := make(map[string][]float64)
	var firstErr error
	for res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("calculating %s: %w", res.Name, res.Err)
			}
			continue
		}
		for col, values := range res.Columns {
			merged[col] = values
		}
	}

	return merged, firstErr
}
