package predict

import (
    "bytes"
    "context"
    "errors"
    "strconv"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "tensicare/internal/data"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/preprocess"
    "tensicare/internal/training"
)

func rawPatients(t *testing.T, n int, seed int64, missing float64) *data.RawTable {
    t.Helper()
    var buf bytes.Buffer
    require.NoError(t, data.GenerateSyntheticPatients(&buf, data.SyntheticOptions{N: n, Seed: seed, MissingRate: missing}))
    raw, err := data.ParseBytes(buf.Bytes())
    require.NoError(t, err)
    return raw
}

func model(t *testing.T) *models.TrainedModel {
    t.Helper()
    tbl, _, err := preprocess.Clean(rawPatients(t, 300, 21, 0), preprocess.Options{Scaling: preprocess.ScaleStandardize, Exclude: []string{data.Target}})
    require.NoError(t, err)
    spec := features.Default(tbl)
    opts := training.DefaultOptions()
    opts.Trees = 15
    m, _, err := training.Train(context.Background(), tbl, &spec, opts)
    require.NoError(t, err)
    return m
}

func rowValues(raw *data.RawTable, i int) map[string]string {
    out := map[string]string{}
    for j, c := range raw.Columns { out[c.Name] = raw.Rows[i][j] }
    return out
}

func TestOneScoresRawRecord(t *testing.T) {
    m := model(t)
    raw := rawPatients(t, 5, 99, 0)

    o, err := One(m, rowValues(raw, 0))
    require.NoError(t, err)
    assert.Contains(t, []float64{0, 1}, o.Class)
    assert.GreaterOrEqual(t, o.Probability, 0.0)
    assert.LessOrEqual(t, o.Probability, 1.0)
    assert.InDelta(t, o.Probability*100, o.Percent, 0.005)
    if o.Class == 1 {
        assert.Equal(t, LabelAtRisk, o.Label)
    } else {
        assert.Equal(t, LabelNotAtRisk, o.Label)
    }
}

func TestOneIsStableAtTrainingMean(t *testing.T) {
    m := model(t)
    values := map[string]string{}
    // every encoded input is 0: scaled means and first category codes
    x := make([]float64, len(m.Features))
    for _, tr := range m.Transforms {
        if tr.Kind == preprocess.CategoricalColumn {
            values[tr.Feature] = tr.Categories[0]
            continue
        }
        require.NotNil(t, tr.Scaler)
        values[tr.Feature] = strconv.FormatFloat(tr.Scaler.Center, 'g', -1, 64)
    }

    first, err := One(m, values)
    require.NoError(t, err)
    for i := 0; i < 3; i++ {
        again, err := One(m, values)
        require.NoError(t, err)
        assert.Equal(t, first, again)
    }
    _, col := PositiveClass(m)
    assert.Equal(t, m.Forest.PredictProba([][]float64{x})[0][col], first.Probability)
}

func TestOneReportsMissingColumns(t *testing.T) {
    m := model(t)
    _, err := One(m, map[string]string{"age": "50"})
    var mc *MissingColumnsError
    require.True(t, errors.As(err, &mc))
    assert.Len(t, mc.Columns, len(m.Features)-1)
    assert.NotContains(t, mc.Columns, "age")
}

func TestManyAppendsPredictionColumns(t *testing.T) {
    m := model(t)
    raw := rawPatients(t, 20, 5, 0)

    out, err := Many(m, raw)
    require.NoError(t, err)
    n := raw.NumColumns()
    assert.Equal(t, append(raw.Header(), ColPrediction, ColLabel, ColProbability, ColRisk), out.Header())
    require.Equal(t, raw.NumRows(), out.NumRows())
    for i := range out.Rows {
        o, err := One(m, rowValues(raw, i))
        require.NoError(t, err)
        assert.Equal(t, o.ClassName, out.Rows[i][n])
        assert.Equal(t, o.Label, out.Rows[i][n+1])
        assert.Equal(t, strconv.FormatFloat(o.Percent, 'f', 2, 64), out.Rows[i][n+2])
        assert.Equal(t, o.Risk, out.Rows[i][n+3])
        assert.Equal(t, RiskTier(o.Probability), o.Risk)
    }
}

func TestRiskTierBoundaries(t *testing.T) {
    cases := []struct {
        p    float64
        want string
    }{
        {0, RiskLow},
        {0.2999, RiskLow},
        {0.3, RiskModerate},
        {0.5999, RiskModerate},
        {0.6, RiskHigh},
        {1, RiskHigh},
    }
    for _, c := range cases {
        assert.Equal(t, c.want, RiskTier(c.p), "p=%v", c.p)
    }
}

func TestManyRejectsWholeBatch(t *testing.T) {
    m := model(t)
    raw := rawPatients(t, 10, 5, 0)
    raw.Rows[2][raw.ColumnIndex("smoking_status")] = "sometimes"

    out, err := Many(m, raw)
    assert.Nil(t, out)
    var re *BatchRowError
    require.True(t, errors.As(err, &re))
    assert.Equal(t, 3, re.Row)
    assert.ErrorIs(t, err, models.ErrUnknownCategory)

    raw.Rows[2][raw.ColumnIndex("smoking_status")] = "never"
    raw.Rows[4][raw.ColumnIndex("age")] = ""
    _, err = Many(m, raw)
    assert.ErrorIs(t, err, models.ErrMissingValue)

    slim := data.NewRawTable([]string{"age", "gender"}, [][]string{{"40", "male"}})
    _, err = Many(m, slim)
    var mc *MissingColumnsError
    require.True(t, errors.As(err, &mc))
    assert.NotContains(t, mc.Columns, "age")
    assert.Contains(t, mc.Columns, "cholesterol_level")
}

func TestPositiveClassFallsBackToLargestLabel(t *testing.T) {
    m := &models.TrainedModel{Forest: &models.RandomForest{Labels: []float64{2, 4, 7}}}
    label, col := PositiveClass(m)
    assert.Equal(t, 7.0, label)
    assert.Equal(t, 2, col)

    m.Forest.Labels = []float64{0, 1, 2}
    label, col = PositiveClass(m)
    assert.Equal(t, 1.0, label)
    assert.Equal(t, 1, col)
}
