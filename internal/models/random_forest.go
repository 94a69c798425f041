package models

import (
    "context"
    "errors"
    "fmt"
    "math"
    "math/rand"
    "runtime"
    "sort"

    "golang.org/x/sync/errgroup"
)

var (
    ErrTooFewClasses = errors.New("target needs at least two classes")
    ErrEmptyInput    = errors.New("no training rows")
)

type RandomForest struct {
    NEstimators int
    MaxDepth    int
    MinSamples  int
    MaxFeatures int
    Seed        int64
    // Balanced weights each class by n / (k * count) of the training rows.
    Balanced bool
    Workers  int

    Labels      []float64
    NFeatures   int
    Trees       []*DecisionTree
    Importances []float64
}

func NewRandomForest() *RandomForest {
    return &RandomForest{NEstimators: 200, MinSamples: 2, Seed: 42, Balanced: true}
}

func (rf *RandomForest) Name() string { return "RandomForest" }

func (rf *RandomForest) Classes() []float64 { return rf.Labels }

func (rf *RandomForest) FeatureImportances() []float64 { return rf.Importances }

func (rf *RandomForest) Fit(X [][]float64, y []float64) error {
    return rf.FitContext(context.Background(), X, y)
}

// FitContext grows NEstimators trees on bootstrap samples with a bounded pool
// of workers. Tree k draws from its own source seeded Seed+k, so the forest
// does not depend on scheduling.
func (rf *RandomForest) FitContext(ctx context.Context, X [][]float64, y []float64) error {
    if len(X) == 0 { return ErrEmptyInput }
    if len(X) != len(y) { return fmt.Errorf("%d rows but %d labels", len(X), len(y)) }
    if rf.NEstimators <= 0 { rf.NEstimators = 200 }

    labels, yi := encodeLabels(y)
    if len(labels) < 2 { return fmt.Errorf("%w: found %d", ErrTooFewClasses, len(labels)) }
    k := len(labels)
    nFeats := len(X[0])
    maxF := rf.MaxFeatures
    if maxF <= 0 { maxF = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeats))))) }

    var cw []float64
    if rf.Balanced {
        cw = make([]float64, k)
        for _, c := range yi { cw[c]++ }
        for c := range cw { cw[c] = float64(len(yi)) / (float64(k) * cw[c]) }
    }

    workers := rf.Workers
    if workers <= 0 { workers = runtime.GOMAXPROCS(0) }
    trees := make([]*DecisionTree, rf.NEstimators)
    g, ctx := errgroup.WithContext(ctx)
    g.SetLimit(workers)
    for t := range trees {
        g.Go(func() (err error) {
            defer func() {
                if r := recover(); r != nil { err = fmt.Errorf("tree %d: panic: %v", t, r) }
            }()
            if err := ctx.Err(); err != nil { return err }
            seed := rf.Seed + int64(t)
            rnd := rand.New(rand.NewSource(seed))
            counts := make([]float64, len(X))
            for range X { counts[rnd.Intn(len(X))]++ }

            dt := NewDecisionTree(k, seed)
            dt.rnd = rnd
            dt.MaxDepth = rf.MaxDepth
            dt.MinSamplesSplit = rf.MinSamples
            dt.MaxFeatures = maxF
            if err := dt.Fit(X, yi, counts, cw); err != nil { return fmt.Errorf("tree %d: %w", t, err) }
            trees[t] = dt
            return nil
        })
    }
    if err := g.Wait(); err != nil { return err }

    rf.Labels = labels
    rf.NFeatures = nFeats
    rf.Trees = trees
    rf.Importances = forestImportances(trees, nFeats)
    return nil
}

// PredictProba averages the leaf distributions of all trees. Columns follow Labels.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
    k := len(rf.Labels)
    out := make([][]float64, len(X))
    for i := range out { out[i] = make([]float64, k) }
    if len(rf.Trees) == 0 {
        for i := range out { out[i] = uniform(k) }
        return out
    }
    for _, dt := range rf.Trees {
        for i, p := range dt.PredictProba(X) {
            for c := range p { out[i][c] += p[c] }
        }
    }
    m := float64(len(rf.Trees))
    for i := range out {
        for c := range out[i] { out[i][c] /= m }
    }
    return out
}

// Predict returns the label with the highest averaged probability; ties go to
// the smaller label.
func (rf *RandomForest) Predict(X [][]float64) []float64 {
    ps := rf.PredictProba(X)
    out := make([]float64, len(ps))
    for i, p := range ps { out[i] = rf.Labels[argmax(p)] }
    return out
}

func encodeLabels(y []float64) ([]float64, []int) {
    seen := map[float64]bool{}
    labels := []float64{}
    for _, v := range y {
        if !seen[v] { seen[v] = true; labels = append(labels, v) }
    }
    sort.Float64s(labels)
    pos := make(map[float64]int, len(labels))
    for i, l := range labels { pos[l] = i }
    yi := make([]int, len(y))
    for i, v := range y { yi[i] = pos[v] }
    return labels, yi
}

// forestImportances averages the normalized importances of trees that split
// at least once. When no tree split at all the vector is uniform.
func forestImportances(trees []*DecisionTree, nFeats int) []float64 {
    out := make([]float64, nFeats)
    used := 0
    for _, dt := range trees {
        if dt.Splits == 0 { continue }
        used++
        for f, v := range dt.Importances { out[f] += v }
    }
    total := 0.0
    for _, v := range out { total += v }
    if used == 0 || total == 0 { return uniform(nFeats) }
    for f := range out { out[f] /= total }
    return out
}

func argmax(p []float64) int {
    best := 0
    for c := range p { if p[c] > p[best] { best = c } }
    return best
}
