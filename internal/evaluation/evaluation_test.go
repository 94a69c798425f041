package evaluation

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestConfusionUsesLabelUnion(t *testing.T) {
    y := []float64{0, 0, 1, 1, 1}
    p := []float64{0, 2, 1, 0, 1}
    labels, m := Confusion(y, p)
    assert.Equal(t, []float64{0, 1, 2}, labels)
    assert.Equal(t, [][]int{{1, 0, 1}, {1, 2, 0}, {0, 0, 0}}, m)

    sum := 0
    for _, row := range m { for _, v := range row { sum += v } }
    assert.Equal(t, len(y), sum)
}

func TestReportBinary(t *testing.T) {
    y := []float64{0, 0, 0, 1, 1}
    p := []float64{0, 1, 0, 1, 0}
    r := Evaluate(y, p, nil, nil)

    assert.InDelta(t, 0.6, r.Accuracy, 1e-12)
    require.Len(t, r.Classes, 2)
    assert.InDelta(t, 2.0/3, r.Classes[0].Precision, 1e-12)
    assert.InDelta(t, 2.0/3, r.Classes[0].Recall, 1e-12)
    assert.Equal(t, 3, r.Classes[0].Support)
    assert.InDelta(t, 0.5, r.Classes[1].F1, 1e-12)
    assert.InDelta(t, (2.0/3+0.5)/2, r.MacroAvg.F1, 1e-12)
    assert.InDelta(t, (3*2.0/3+2*0.5)/5, r.WeightedAvg.F1, 1e-12)
    assert.Equal(t, 5, r.WeightedAvg.Support)
    assert.Nil(t, r.ROCAUC)
}

func TestROCAUC(t *testing.T) {
    auc, ok := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
    require.True(t, ok)
    assert.InDelta(t, 0.75, auc, 1e-12)

    auc, _ = ROCAUC([]int{0, 1}, []float64{0.5, 0.5})
    assert.InDelta(t, 0.5, auc, 1e-12)

    _, ok = ROCAUC([]int{1, 1}, []float64{0.2, 0.9})
    assert.False(t, ok)
}

func TestEvaluateBinaryScoresPositiveColumn(t *testing.T) {
    y := []float64{3, 3, 7, 7}
    proba := [][]float64{{0.9, 0.1}, {0.6, 0.4}, {0.65, 0.35}, {0.2, 0.8}}
    r := Evaluate(y, []float64{3, 3, 3, 7}, proba, []float64{3, 7})
    require.NotNil(t, r.ROCAUC)
    assert.InDelta(t, 0.75, *r.ROCAUC, 1e-12)
    require.NotNil(t, r.PRAUC)
}

func TestRankImportances(t *testing.T) {
    got := RankImportances([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.2})
    assert.Equal(t, []Importance{{"b", 0.5}, {"a", 0.2}, {"c", 0.2}}, got)
}
