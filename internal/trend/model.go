package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"AlphaSentinel/internal/calculator"
	"AlphaSentinel/internal/model"
)

// WindowSize is the number of trailing rows fed to a model.
const WindowSize = 60

// ErrNoModel means no classifier artifact exists for the symbol.
var ErrNoModel = errors.New("no trend model")

// classLabels maps model output index to trend.
var classLabels = []model.Trend{model.TrendBullish, model.TrendBearish, model.TrendSideways}

// Predictor is a trained classifier: feature window in, class scores out.
type Predictor interface {
	Predict(window *mat.Dense) ([]float64, error)
}

// ModelStore loads per-symbol predictors.
type ModelStore interface {
	Load(symbol string) (Predictor, error)
}

// FileModelStore reads artifacts named "<BASE>_trend_model.json" from Dir,
// where BASE is the symbol without its exchange suffix.
type FileModelStore struct {
	Dir    string
	Suffix string
}

// Path returns the artifact path for symbol.
func (s *FileModelStore) Path(symbol string) string {
	base := strings.TrimSuffix(symbol, s.Suffix)
	return filepath.Join(s.Dir, base+"_trend_model.json")
}

func (s *FileModelStore) Load(symbol string) (Predictor, error) {
	data, err := os.ReadFile(s.Path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoModel
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseDenseModel(data)
}

// denseArtifact is the on-disk form of a DenseModel. Weights are row-major
// with (input_rows*input_cols) rows and classes columns.
type denseArtifact struct {
	InputRows int       `json:"input_rows"`
	InputCols int       `json:"input_cols"`
	Classes   int       `json:"classes"`
	Weights   []float64 `json:"weights"`
	Bias      []float64 `json:"bias"`
}

// DenseModel is a single softmax layer over the flattened window.
type DenseModel struct {
	rows, cols int
	w          *mat.Dense
	b          *mat.VecDense
}

// ParseDenseModel decodes and shape-checks an artifact.
func ParseDenseModel(data []byte) (*DenseModel, error) {
	var a denseArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.InputRows <= 0 || a.InputCols <= 0 || a.Classes <= 0 {
		return nil, fmt.Errorf("model dimensions must be positive")
	}
	n := a.InputRows * a.InputCols
	if len(a.Weights) != n*a.Classes {
		return nil, fmt.Errorf("model weights: want %d values, got %d", n*a.Classes, len(a.Weights))
	}
	if len(a.Bias) != a.Classes {
		return nil, fmt.Errorf("model bias: want %d values, got %d", a.Classes, len(a.Bias))
	}
	return &DenseModel{
		rows: a.InputRows,
		cols: a.InputCols,
		w:    mat.NewDense(n, a.Classes, a.Weights),
		b:    mat.NewVecDense(a.Classes, a.Bias),
	}, nil
}

// Predict returns softmax probabilities for window.
func (m *DenseModel) Predict(window *mat.Dense) ([]float64, error) {
	r, c := window.Dims()
	if r != m.rows || c != m.cols {
		return nil, fmt.Errorf("window shape %dx%d, model expects %dx%d", r, c, m.rows, m.cols)
	}
	flat := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		flat = append(flat, mat.Row(nil, i, window)...)
	}
	x := mat.NewVecDense(len(flat), flat)

	var logits mat.VecDense
	logits.MulVec(m.w.T(), x)
	logits.AddVec(&logits, m.b)

	out := make([]float64, logits.Len())
	for i := range out {
		out[i] = logits.AtVec(i)
	}
	return softmax(out), nil
}

func softmax(v []float64) []float64 {
	maxV := floats.Max(v)
	var sum float64
	for i := range v {
		v[i] = math.Exp(v[i] - maxV)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
	return v
}

// BuildWindow copies the trailing WindowSize rows of FeatureColumns into a matrix.
func BuildWindow(rows *calculator.Frame) (*mat.Dense, error) {
	if rows.Len() < WindowSize {
		return nil, fmt.Errorf("need %d rows, have %d", WindowSize, rows.Len())
	}
	tail := rows.Tail(WindowSize)
	w := mat.NewDense(WindowSize, len(FeatureColumns), nil)
	for j, name := range FeatureColumns {
		col := tail.Column(name)
		if col == nil {
			return nil, fmt.Errorf("missing feature column %s", name)
		}
		w.SetCol(j, col)
	}
	return w, nil
}

// Normalize min-max scales every column of w into [0,1] in place using that
// column's own range. Constant columns become 0.
func Normalize(w *mat.Dense) {
	r, c := w.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, w)
		lo, hi := floats.Min(col), floats.Max(col)
		span := hi - lo
		for i := range col {
			if span == 0 {
				col[i] = 0
			} else {
				col[i] = (col[i] - lo) / span
			}
		}
		w.SetCol(j, col)
	}
}

// ModelStrategy runs the per-symbol trained classifier when one is available
// and enough fully-featured rows exist.
type ModelStrategy struct {
	Store ModelStore
}

func (s *ModelStrategy) Name() string { return "model" }

func (s *ModelStrategy) Classify(_ context.Context, symbol string, rows *calculator.Frame) (model.TrendLabel, error) {
	if s.Store == nil {
		return model.TrendLabel{}, ErrNotApplicable
	}
	predictor, err := s.Store.Load(symbol)
	if err != nil {
		if errors.Is(err, ErrNoModel) {
			return model.TrendLabel{}, ErrNotApplicable
		}
		return model.TrendLabel{}, err
	}
	if rows.Len() < WindowSize {
		return model.TrendLabel{}, ErrNotApplicable
	}
	window, err := BuildWindow(rows)
	if err != nil {
		return model.TrendLabel{}, err
	}
	Normalize(window)

	scores, err := predictor.Predict(window)
	if err != nil {
		return model.TrendLabel{}, fmt.Errorf("inference: %w", err)
	}
	if len(scores) != len(classLabels) {
		return model.TrendLabel{}, fmt.Errorf("inference: want %d classes, got %d", len(classLabels), len(scores))
	}
	for _, v := range scores {
		if math.IsNaN(v) {
			return model.TrendLabel{}, fmt.Errorf("inference: NaN score")
		}
	}
	return model.TrendLabel{Trend: classLabels[floats.MaxIdx(scores)], Source: model.SourceModel}, nil
}
