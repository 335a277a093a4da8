package calculator

import (
	"math"

	"AlphaSentinel/internal/model"
)

// Column names of a Frame.
const (
	ColClose      = "Close"
	ColVolume     = "Volume"
	ColSMA50      = "SMA_50"
	ColEMA20      = "EMA_20"
	ColMACD       = "MACD"
	ColMACDSignal = "MACD_Signal"
	ColRSI14      = "RSI_14"
)

// Frame is a price series with derived columns appended. Undefined cells are NaN.
type Frame struct {
	Bars []model.OHLCV
	cols map[string][]float64
	// order keeps column insertion order for Columns().
	order []string
}

// NewFrame builds a frame holding the close and volume columns of bars.
func NewFrame(bars []model.OHLCV) *Frame {
	f := &Frame{Bars: bars, cols: make(map[string][]float64)}
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	f.Set(ColClose, closes)
	f.Set(ColVolume, volumes)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Bars) }

// Set adds or replaces a column. values must have one entry per row.
func (f *Frame) Set(name string, values []float64) {
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
}

// Column returns the named column, or nil if absent.
func (f *Frame) Column(name string) []float64 {
	return f.cols[name]
}

// Columns lists column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Value returns the cell at row i; ok is false when the cell is undefined.
func (f *Frame) Value(name string, i int) (v float64, ok bool) {
	col := f.cols[name]
	if i < 0 || i >= len(col) || math.IsNaN(col[i]) {
		return math.NaN(), false
	}
	return col[i], true
}

// RowComplete reports whether every column is defined at row i.
func (f *Frame) RowComplete(i int) bool {
	for _, name := range f.order {
		if _, ok := f.Value(name, i); !ok {
			return false
		}
	}
	return true
}

// DropIncomplete returns a new frame containing only rows with every column defined.
func (f *Frame) DropIncomplete() *Frame {
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		if f.RowComplete(i) {
			keep = append(keep, i)
		}
	}
	out := &Frame{Bars: make([]model.OHLCV, len(keep)), cols: make(map[string][]float64)}
	for j, i := range keep {
		out.Bars[j] = f.Bars[i]
	}
	for _, name := range f.order {
		src := f.cols[name]
		dst := make([]float64, len(keep))
		for j, i := range keep {
			dst[j] = src[i]
		}
		out.Set(name, dst)
	}
	return out
}

// Tail returns a frame of the last n rows (or all rows if fewer exist).
func (f *Frame) Tail(n int) *Frame {
	start := f.Len() - n
	if start < 0 {
		start = 0
	}
	out := &Frame{Bars: f.Bars[start:], cols: make(map[string][]float64)}
	for _, name := range f.order {
		out.Set(name, f.cols[name][start:])
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// mask marks the first lookback cells of a talib output as undefined.
func mask(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}
