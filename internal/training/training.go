package training

import (
    "context"
    "errors"
    "fmt"
    "math"
    "math/rand"

    "tensicare/internal/evaluation"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/preprocess"
)

var ErrTraining = errors.New("training failed")

type Options struct {
    TestRatio       float64 `json:"test_ratio" yaml:"test_ratio" toml:"test_ratio" validate:"gt=0,lt=1"`
    Seed            int64   `json:"seed" yaml:"seed" toml:"seed"`
    Trees           int     `json:"trees" yaml:"trees" toml:"trees" validate:"gte=0"`
    MaxDepth        int     `json:"max_depth" yaml:"max_depth" toml:"max_depth" validate:"gte=0"`
    MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split" toml:"min_samples_split" validate:"gte=0"`
    Workers         int     `json:"workers" yaml:"workers" toml:"workers" validate:"gte=0"`
}

func DefaultOptions() Options {
    return Options{TestRatio: 0.2, Seed: 42, Trees: 200, MinSamplesSplit: 2}
}

// Split shuffles 0..n-1 with the seed and puts the first ceil(ratio*n)
// shuffled rows in the test partition.
func Split(n int, ratio float64, seed int64) (train, test []int) {
    perm := rand.New(rand.NewSource(seed)).Perm(n)
    nTest := int(math.Ceil(ratio * float64(n)))
    if nTest > n { nTest = n }
    return perm[nTest:], perm[:nTest]
}

// Train fits a random forest on the training partition of the table and
// scores it on the test partition. Nothing is returned on failure.
func Train(ctx context.Context, t *preprocess.CleanTable, spec *features.Spec, opts Options) (m *models.TrainedModel, res *evaluation.Result, err error) {
    defer func() {
        if r := recover(); r != nil {
            m, res, err = nil, nil, fmt.Errorf("%w: %v", ErrTraining, r)
        }
    }()
    if opts.TestRatio <= 0 || opts.TestRatio >= 1 || math.IsNaN(opts.TestRatio) {
        return nil, nil, fmt.Errorf("%w: test ratio %v not in (0, 1)", ErrTraining, opts.TestRatio)
    }
    X, y, err := features.Matrix(t, spec)
    if err != nil { return nil, nil, fmt.Errorf("%w: %w", ErrTraining, err) }

    if distinct(y) < 2 {
        return nil, nil, fmt.Errorf("%w: target %q: %w", ErrTraining, spec.Target, models.ErrTooFewClasses)
    }

    trainIdx, testIdx := Split(len(X), opts.TestRatio, opts.Seed)
    if len(trainIdx) == 0 || len(testIdx) == 0 {
        return nil, nil, fmt.Errorf("%w: %d rows give %d training and %d test rows", ErrTraining, len(X), len(trainIdx), len(testIdx))
    }
    Xtrain, ytrain := subset(X, y, trainIdx)
    Xtest, ytest := subset(X, y, testIdx)

    rf := newForest(opts)
    if err := rf.FitContext(ctx, Xtrain, ytrain); err != nil {
        if errors.Is(err, models.ErrTooFewClasses) { err = fmt.Errorf("training partition: %w", err) }
        return nil, nil, fmt.Errorf("%w: %w", ErrTraining, err)
    }

    proba := rf.PredictProba(Xtest)
    pred := make([]float64, len(proba))
    for i := range proba { pred[i] = rf.Labels[argmax(proba[i])] }
    res = evaluation.Evaluate(ytest, pred, proba, rf.Labels)
    res.TrainRows = len(trainIdx)
    res.Importances = evaluation.RankImportances(spec.Predictors, rf.Importances)

    m = &models.TrainedModel{
        Forest:     rf,
        Features:   append([]string(nil), spec.Predictors...),
        Target:     spec.Target,
        Transforms: models.TransformsFor(t, spec.Predictors),
    }
    if tc, ok := t.Column(spec.Target); ok && tc.Kind == preprocess.CategoricalColumn {
        m.TargetCategories = append([]string(nil), tc.Categories...)
    }
    return m, res, nil
}

func newForest(opts Options) *models.RandomForest {
    rf := models.NewRandomForest()
    if opts.Trees > 0 { rf.NEstimators = opts.Trees }
    if opts.MinSamplesSplit > 0 { rf.MinSamples = opts.MinSamplesSplit }
    rf.MaxDepth = opts.MaxDepth
    rf.Seed = opts.Seed
    rf.Workers = opts.Workers
    return rf
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
    xs := make([][]float64, len(idx))
    ys := make([]float64, len(idx))
    for k, i := range idx { xs[k], ys[k] = X[i], y[i] }
    return xs, ys
}

func distinct(y []float64) int {
    seen := map[float64]bool{}
    for _, v := range y { seen[v] = true }
    return len(seen)
}

func argmax(p []float64) int {
    best := 0
    for c := range p { if p[c] > p[best] { best = c } }
    return best
}
