package training

import (
    "context"
    "fmt"
    "math"

    "tensicare/internal/evaluation"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/preprocess"
)

type CurvePoint struct {
    Size     int     `json:"size"`
    TrainAcc float64 `json:"train_acc"`
    TestAcc  float64 `json:"test_acc"`
    TrainF1  float64 `json:"train_f1"`
    TestF1   float64 `json:"test_f1"`
}

// LearningCurve refits the forest on growing prefixes of the training
// partition and scores each fit on the prefix and on the full test partition.
// F1 is the macro average.
func LearningCurve(ctx context.Context, t *preprocess.CleanTable, spec *features.Spec, opts Options, points, minSize int, logScale bool) ([]CurvePoint, error) {
    X, y, err := features.Matrix(t, spec)
    if err != nil { return nil, fmt.Errorf("%w: %w", ErrTraining, err) }
    trainIdx, testIdx := Split(len(X), opts.TestRatio, opts.Seed)
    if len(trainIdx) < 2 || len(testIdx) == 0 { return nil, fmt.Errorf("%w: not enough rows for a curve", ErrTraining) }
    Xtrain, ytrain := subset(X, y, trainIdx)
    Xtest, ytest := subset(X, y, testIdx)

    sizes := CurveSizes(len(Xtrain), points, minSize, logScale)
    out := make([]CurvePoint, 0, len(sizes))
    for _, s := range sizes {
        if err := ctx.Err(); err != nil { return nil, err }
        if distinct(ytrain[:s]) < 2 { continue }
        rf := newForest(opts)
        if err := rf.FitContext(ctx, Xtrain[:s], ytrain[:s]); err != nil {
            return nil, fmt.Errorf("%w: curve point %d: %w", ErrTraining, s, err)
        }
        pt := CurvePoint{Size: s}
        pt.TrainAcc, pt.TrainF1 = score(rf, Xtrain[:s], ytrain[:s])
        pt.TestAcc, pt.TestF1 = score(rf, Xtest, ytest)
        out = append(out, pt)
    }
    return out, nil
}

// score returns the accuracy and macro F1 of m on X.
func score(m models.Model, X [][]float64, y []float64) (float64, float64) {
    p := m.Predict(X)
    _, _, macro := evaluation.Report(evaluation.Confusion(y, p))
    return evaluation.Accuracy(y, p), macro.F1
}

// CurveSizes spreads points training sizes between min and total, strictly
// increasing and always ending at total.
func CurveSizes(total, points, min int, useLog bool) []int {
    if total <= 0 { return nil }
    if points <= 1 { points = 2 }
    if min < 10 { min = 10 }
    if min > total { min = int(math.Max(1, float64(total)/2)) }
    sizes := make([]int, 0, points)
    if useLog {
        ratio := math.Pow(float64(total)/float64(min), 1.0/float64(points-1))
        for i := 0; i < points; i++ {
            sizes = append(sizes, int(math.Round(float64(min)*math.Pow(ratio, float64(i)))))
        }
    } else {
        step := float64(total-min) / float64(points-1)
        for i := 0; i < points; i++ {
            sizes = append(sizes, int(math.Round(float64(min)+float64(i)*step)))
        }
    }
    cleaned := make([]int, 0, len(sizes))
    last := 0
    for _, s := range sizes {
        if s <= last { s = last + 1 }
        if s > total { s = total }
        if s != last { cleaned = append(cleaned, s); last = s }
    }
    cleaned[len(cleaned)-1] = total
    return cleaned
}
