package predict

import (
    "fmt"
    "math"
    "strconv"
    "strings"

    "tensicare/internal/data"
    "tensicare/internal/models"
)

const (
    LabelAtRisk    = "At Risk"
    LabelNotAtRisk = "Not At Risk"
)

// Risk tiers of the positive-class probability.
const (
    RiskHigh     = "high"
    RiskModerate = "moderate"
    RiskLow      = "low"
)

// Columns appended by Many.
const (
    ColPrediction  = "prediction"
    ColLabel       = "prediction_label"
    ColProbability = "probability"
    ColRisk        = "risk"
)

type Outcome struct {
    Class     float64 `json:"class"`
    ClassName string  `json:"class_name"`
    // Probability is the probability of the positive class.
    Probability float64 `json:"probability"`
    Percent     float64 `json:"percent"`
    Label       string  `json:"label"`
    Risk        string  `json:"risk"`
}

// RiskTier buckets a positive-class probability: high from 0.6, moderate
// from 0.3, low below.
func RiskTier(p float64) string {
    switch {
    case p >= 0.6:
        return RiskHigh
    case p >= 0.3:
        return RiskModerate
    }
    return RiskLow
}

type MissingColumnsError struct {
    Columns []string
}

func (e *MissingColumnsError) Error() string {
    return "missing predictor columns: " + strings.Join(e.Columns, ", ")
}

// BatchRowError points at the 1-based data row that could not be scored.
type BatchRowError struct {
    Row int
    Err error
}

func (e *BatchRowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *BatchRowError) Unwrap() error { return e.Err }

// PositiveClass is the class labeled 1, or the largest label when 1 is not a
// class. It returns the label and its probability column.
func PositiveClass(m *models.TrainedModel) (float64, int) {
    labels := m.Forest.Classes()
    for i, l := range labels {
        if l == 1 { return l, i }
    }
    return labels[len(labels)-1], len(labels) - 1
}

// One scores a single record given as raw cells keyed by predictor name.
func One(m *models.TrainedModel, values map[string]string) (Outcome, error) {
    var missing []string
    for _, f := range m.Features {
        if _, ok := values[f]; !ok { missing = append(missing, f) }
    }
    if len(missing) > 0 { return Outcome{}, &MissingColumnsError{Columns: missing} }

    x := make([]float64, len(m.Features))
    for j, tr := range m.Transforms {
        v, err := tr.Encode(values[tr.Feature])
        if err != nil { return Outcome{}, err }
        x[j] = v
    }
    return outcome(m, m.Forest.PredictProba([][]float64{x})[0]), nil
}

// Many scores every row of t and returns a copy with the prediction columns
// appended. Any bad row fails the whole batch.
func Many(m *models.TrainedModel, t *data.RawTable) (*data.RawTable, error) {
    pos := make([]int, len(m.Features))
    var missing []string
    for j, f := range m.Features {
        pos[j] = t.ColumnIndex(f)
        if pos[j] < 0 { missing = append(missing, f) }
    }
    if len(missing) > 0 { return nil, &MissingColumnsError{Columns: missing} }

    X := make([][]float64, t.NumRows())
    for i, row := range t.Rows {
        x := make([]float64, len(m.Features))
        for j, tr := range m.Transforms {
            v, err := tr.Encode(row[pos[j]])
            if err != nil { return nil, &BatchRowError{Row: i + 1, Err: err} }
            x[j] = v
        }
        X[i] = x
    }

    header := append(t.Header(), ColPrediction, ColLabel, ColProbability, ColRisk)
    rows := make([][]string, len(X))
    for i, p := range m.Forest.PredictProba(X) {
        o := outcome(m, p)
        rows[i] = append(append([]string(nil), t.Rows[i]...), o.ClassName, o.Label, strconv.FormatFloat(o.Percent, 'f', 2, 64), o.Risk)
    }
    return data.NewRawTable(header, rows), nil
}

func outcome(m *models.TrainedModel, p []float64) Outcome {
    labels := m.Forest.Classes()
    best := 0
    for c := range p { if p[c] > p[best] { best = c } }
    positive, col := PositiveClass(m)

    o := Outcome{Class: labels[best], ClassName: m.ClassName(labels[best]), Probability: p[col]}
    o.Percent = math.Round(p[col]*10000) / 100
    o.Risk = RiskTier(p[col])
    o.Label = LabelNotAtRisk
    if labels[best] == positive { o.Label = LabelAtRisk }
    return o
}
