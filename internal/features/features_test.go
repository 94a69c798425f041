package features

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/multierr"

    "tensicare/internal/preprocess"
)

func table() *preprocess.CleanTable {
    return &preprocess.CleanTable{Columns: []preprocess.Column{
        {Name: "age", Values: []float64{40, 50, 60}},
        {Name: "smoke", Kind: preprocess.CategoricalColumn, Values: []float64{0, 1, 0}, Categories: []string{"no", "yes"}},
        {Name: "hypertension", Values: []float64{0, 1, 1}},
    }}
}

func TestSelectValid(t *testing.T) {
    s, err := Select(table(), []string{"smoke", "age"}, "hypertension")
    require.NoError(t, err)
    assert.Equal(t, []string{"smoke", "age"}, s.Predictors)
    assert.Equal(t, "hypertension", s.Target)
}

func TestSelectReportsEveryViolation(t *testing.T) {
    _, err := Select(table(), []string{"age", "age", "bmi", "hypertension"}, "hypertension")
    require.Error(t, err)
    assert.ErrorIs(t, err, ErrDuplicatePredictor)
    assert.ErrorIs(t, err, ErrUnknownPredictor)
    assert.ErrorIs(t, err, ErrTargetIsPredictor)
    assert.Len(t, multierr.Errors(err), 3)

    _, err = Select(table(), nil, "")
    assert.ErrorIs(t, err, ErrTargetNotSet)
    assert.ErrorIs(t, err, ErrNoPredictors)

    _, err = Select(table(), []string{"age"}, "stroke")
    assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestDefaultUsesLastColumnAsTarget(t *testing.T) {
    s := Default(table())
    assert.Equal(t, []string{"age", "smoke"}, s.Predictors)
    assert.Equal(t, "hypertension", s.Target)
    assert.Equal(t, Spec{}, Default(&preprocess.CleanTable{}))
}

func TestMatrixFollowsSpecOrder(t *testing.T) {
    X, y, err := Matrix(table(), &Spec{Predictors: []string{"smoke", "age"}, Target: "hypertension"})
    require.NoError(t, err)
    assert.Equal(t, [][]float64{{0, 40}, {1, 50}, {0, 60}}, X)
    assert.Equal(t, []float64{0, 1, 1}, y)

    _, _, err = Matrix(table(), &Spec{Predictors: []string{"bmi"}, Target: "hypertension"})
    assert.ErrorIs(t, err, ErrUnknownPredictor)
}
