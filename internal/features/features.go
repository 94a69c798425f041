package features

import (
    "errors"
    "fmt"

    "go.uber.org/multierr"

    "tensicare/internal/preprocess"
)

var (
    ErrTargetNotSet       = errors.New("target column not set")
    ErrUnknownTarget      = errors.New("target column not in table")
    ErrNoPredictors       = errors.New("no predictor columns selected")
    ErrUnknownPredictor   = errors.New("predictor column not in table")
    ErrTargetIsPredictor  = errors.New("target column selected as predictor")
    ErrDuplicatePredictor = errors.New("predictor column selected twice")
)

// Spec is a validated predictor/target selection over a clean table.
type Spec struct {
    Predictors []string `json:"predictors"`
    Target     string   `json:"target"`
}

// Select checks the selection against the table and reports every violated
// constraint at once.
func Select(t *preprocess.CleanTable, predictors []string, target string) (*Spec, error) {
    var err error
    switch _, ok := t.Column(target); {
    case target == "":
        err = multierr.Append(err, ErrTargetNotSet)
    case !ok:
        err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownTarget, target))
    }
    if len(predictors) == 0 { err = multierr.Append(err, ErrNoPredictors) }

    seen := make(map[string]bool, len(predictors))
    for _, p := range predictors {
        if seen[p] {
            err = multierr.Append(err, fmt.Errorf("%w: %q", ErrDuplicatePredictor, p))
            continue
        }
        seen[p] = true
        if _, ok := t.Column(p); !ok {
            err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownPredictor, p))
        } else if p == target {
            err = multierr.Append(err, fmt.Errorf("%w: %q", ErrTargetIsPredictor, p))
        }
    }
    if err != nil { return nil, err }
    return &Spec{Predictors: append([]string(nil), predictors...), Target: target}, nil
}

// Default proposes every column but the last as predictor and the last as target.
func Default(t *preprocess.CleanTable) Spec {
    names := t.Names()
    if len(names) == 0 { return Spec{} }
    return Spec{Predictors: names[:len(names)-1], Target: names[len(names)-1]}
}

// Matrix extracts the predictor rows in spec order and the target vector.
func Matrix(t *preprocess.CleanTable, s *Spec) ([][]float64, []float64, error) {
    cols := make([]*preprocess.Column, len(s.Predictors))
    for j, name := range s.Predictors {
        c, ok := t.Column(name)
        if !ok { return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPredictor, name) }
        cols[j] = c
    }
    tc, ok := t.Column(s.Target)
    if !ok { return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTarget, s.Target) }

    n := t.NumRows()
    X := make([][]float64, n)
    for i := 0; i < n; i++ {
        row := make([]float64, len(cols))
        for j, c := range cols { row[j] = c.Values[i] }
        X[i] = row
    }
    y := append([]float64(nil), tc.Values...)
    return X, y, nil
}
