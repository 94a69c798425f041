package charts

import (
    "bytes"
    "errors"
    "fmt"
    "math"
    "sort"
    "strconv"

    "gonum.org/v1/gonum/stat"
    "gonum.org/v1/plot"
    "gonum.org/v1/plot/palette/moreland"
    "gonum.org/v1/plot/plotter"
    "gonum.org/v1/plot/plotutil"
    "gonum.org/v1/plot/vg"

    "tensicare/internal/data"
    "tensicare/internal/evaluation"
    "tensicare/internal/preprocess"
    "tensicare/internal/training"
)

var (
    ErrNoData      = errors.New("nothing to plot")
    ErrUnknownKind = errors.New("unknown chart kind")
)

type Kind string

const (
    KindDistribution Kind = "distribution"
    KindTarget       Kind = "target"
    KindCorrelation  Kind = "correlation"
    KindImportance   Kind = "importance"
    KindCurve        Kind = "curve"
)

func ParseKind(s string) (Kind, error) {
    switch k := Kind(s); k {
    case KindDistribution, KindTarget, KindCorrelation, KindImportance, KindCurve:
        return k, nil
    }
    return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func png(p *plot.Plot, w, h vg.Length) ([]byte, error) {
    wt, err := p.WriterTo(w, h, "png")
    if err != nil { return nil, err }
    var buf bytes.Buffer
    if _, err := wt.WriteTo(&buf); err != nil { return nil, err }
    return buf.Bytes(), nil
}

// Distribution draws a histogram of the numeric cells of a raw column.
// Missing and non-numeric cells are skipped.
func Distribution(t *data.RawTable, column string, bins int) ([]byte, error) {
    j := t.ColumnIndex(column)
    if j < 0 { return nil, fmt.Errorf("%w: no column %q", ErrNoData, column) }
    vals := plotter.Values{}
    for _, r := range t.Rows {
        if v, ok := data.ParseNumber(r[j]); ok { vals = append(vals, v) }
    }
    if len(vals) == 0 { return nil, fmt.Errorf("%w: column %q has no numeric values", ErrNoData, column) }
    if bins <= 0 { bins = 20 }

    p := plot.New()
    p.Title.Text = "Distribution of " + column
    p.X.Label.Text = column
    p.Y.Label.Text = "Count"
    h, err := plotter.NewHist(vals, bins)
    if err != nil { return nil, err }
    h.FillColor = plotutil.Color(0)
    p.Add(h)
    return png(p, 6*vg.Inch, 4*vg.Inch)
}

// Target draws the number of rows per class of the target column.
func Target(t *preprocess.CleanTable, target string) ([]byte, error) {
    col, ok := t.Column(target)
    if !ok || len(col.Values) == 0 { return nil, fmt.Errorf("%w: no target %q", ErrNoData, target) }
    counts := map[float64]float64{}
    for _, v := range col.Values { counts[v]++ }
    labels := make([]float64, 0, len(counts))
    for l := range counts { labels = append(labels, l) }
    sort.Float64s(labels)

    vals := make(plotter.Values, len(labels))
    names := make([]string, len(labels))
    for i, l := range labels {
        vals[i] = counts[l]
        names[i] = strconv.FormatFloat(l, 'g', -1, 64)
        if col.Kind == preprocess.CategoricalColumn { names[i] = col.Categories[int(l)] }
    }

    p := plot.New()
    p.Title.Text = "Class distribution of " + target
    p.Y.Label.Text = "Rows"
    bars, err := plotter.NewBarChart(vals, vg.Points(40))
    if err != nil { return nil, err }
    bars.Color = plotutil.Color(1)
    p.Add(bars)
    p.NominalX(names...)
    return png(p, 5*vg.Inch, 4*vg.Inch)
}

type corrGrid struct {
    m [][]float64
}

func (g corrGrid) Dims() (int, int) { return len(g.m), len(g.m) }
func (g corrGrid) Z(c, r int) float64 { return g.m[r][c] }
func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

// CorrelationMatrix returns the Pearson correlation of every column pair.
// Pairs involving a constant column are 0.
func CorrelationMatrix(t *preprocess.CleanTable) [][]float64 {
    n := len(t.Columns)
    m := make([][]float64, n)
    for i := range m {
        m[i] = make([]float64, n)
        for j := range m[i] {
            if i == j { m[i][j] = 1; continue }
            c := stat.Correlation(t.Columns[i].Values, t.Columns[j].Values, nil)
            if math.IsNaN(c) { c = 0 }
            m[i][j] = c
        }
    }
    return m
}

// Correlation draws the correlation matrix of the clean table as a heatmap.
func Correlation(t *preprocess.CleanTable) ([]byte, error) {
    if len(t.Columns) < 2 || t.NumRows() < 2 { return nil, fmt.Errorf("%w: need two columns and two rows", ErrNoData) }
    cm := moreland.SmoothBlueRed()
    cm.SetMin(-1)
    cm.SetMax(1)
    hm := plotter.NewHeatMap(corrGrid{m: CorrelationMatrix(t)}, cm.Palette(255))
    hm.Min, hm.Max = -1, 1

    p := plot.New()
    p.Title.Text = "Correlation matrix"
    p.Add(hm)
    p.NominalX(t.Names()...)
    p.NominalY(t.Names()...)
    p.X.Tick.Label.Rotation = math.Pi / 2.5
    p.X.Tick.Label.XAlign = -1
    side := vg.Length(len(t.Columns))*0.45*vg.Inch + 2*vg.Inch
    return png(p, side, side)
}

// Importances draws a horizontal bar per feature, most important on top.
func Importances(imps []evaluation.Importance) ([]byte, error) {
    if len(imps) == 0 { return nil, fmt.Errorf("%w: no importances", ErrNoData) }
    n := len(imps)
    vals := make(plotter.Values, n)
    names := make([]string, n)
    for i, imp := range imps {
        vals[n-1-i] = imp.Importance
        names[n-1-i] = imp.Feature
    }

    p := plot.New()
    p.Title.Text = "Feature importance"
    p.X.Label.Text = "Mean decrease in impurity"
    bars, err := plotter.NewBarChart(vals, vg.Points(12))
    if err != nil { return nil, err }
    bars.Horizontal = true
    bars.Color = plotutil.Color(2)
    p.Add(bars)
    p.NominalY(names...)
    return png(p, 7*vg.Inch, vg.Length(n)*0.3*vg.Inch+1.5*vg.Inch)
}

// LearningCurve draws train and test accuracy and macro F1 against the
// training size.
func LearningCurve(points []training.CurvePoint) ([]byte, error) {
    if len(points) == 0 { return nil, fmt.Errorf("%w: empty curve", ErrNoData) }
    p := plot.New()
    p.Title.Text = "Learning curve"
    p.X.Label.Text = "Training rows"
    p.Y.Label.Text = "Score"
    p.Y.Min = 0
    p.Y.Max = 1

    toXY := func(f func(training.CurvePoint) float64) plotter.XYs {
        pts := make(plotter.XYs, len(points))
        for i, c := range points { pts[i].X = float64(c.Size); pts[i].Y = f(c) }
        return pts
    }
    if err := plotutil.AddLinePoints(p,
        "Train (Acc)", toXY(func(c training.CurvePoint) float64 { return c.TrainAcc }),
        "Test (Acc)", toXY(func(c training.CurvePoint) float64 { return c.TestAcc }),
        "Train (F1)", toXY(func(c training.CurvePoint) float64 { return c.TrainF1 }),
        "Test (F1)", toXY(func(c training.CurvePoint) float64 { return c.TestF1 }),
    ); err != nil {
        return nil, err
    }
    return png(p, 8*vg.Inch, 4*vg.Inch)
}
