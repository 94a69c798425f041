package models

import (
    "math"
    "math/rand"
    "sort"
)

type DTNode struct {
    Feature   int
    Threshold float64
    Left      *DTNode
    Right     *DTNode
    IsLeaf    bool
    // Proba is the weighted class distribution of the training samples in the leaf.
    Proba []float64
}

// DecisionTree is a CART classifier splitting on weighted gini impurity.
// Class labels are indices in [0, NClasses).
type DecisionTree struct {
    MaxDepth        int // 0 means unbounded
    MinSamplesSplit int
    MaxFeatures     int // 0 means all features
    NClasses        int
    Root            *DTNode
    // Importances holds the impurity decrease per feature, normalized to sum to 1.
    Importances []float64
    Splits      int

    rnd *rand.Rand
}

func NewDecisionTree(nClasses int, seed int64) *DecisionTree {
    return &DecisionTree{MinSamplesSplit: 2, NClasses: nClasses, rnd: rand.New(rand.NewSource(seed))}
}

func (dt *DecisionTree) Name() string { return "DecisionTree" }

// Fit grows the tree. counts is the number of times each row was drawn
// (nil means once) and classWeight scales every sample of a class.
func (dt *DecisionTree) Fit(X [][]float64, y []int, counts []float64, classWeight []float64) error {
    if dt.rnd == nil { dt.rnd = rand.New(rand.NewSource(0)) }
    if dt.MinSamplesSplit < 2 { dt.MinSamplesSplit = 2 }
    nFeats := 0
    if len(X) > 0 { nFeats = len(X[0]) }

    b := &builder{X: X, y: y, k: dt.NClasses, tree: dt, w: make([]float64, len(X)), n: make([]float64, len(X))}
    idx := make([]int, 0, len(X))
    for i := range X {
        c := 1.0
        if counts != nil { c = counts[i] }
        if c == 0 { continue }
        cw := 1.0
        if classWeight != nil { cw = classWeight[y[i]] }
        b.n[i] = c
        b.w[i] = c * cw
        idx = append(idx, i)
    }
    dt.Importances = make([]float64, nFeats)
    dt.Splits = 0
    dt.Root = b.build(idx, 0)

    total := 0.0
    for _, v := range dt.Importances { total += v }
    if total > 0 {
        for f := range dt.Importances { dt.Importances[f] /= total }
    }
    return nil
}

// PredictProba returns one class distribution per row.
func (dt *DecisionTree) PredictProba(X [][]float64) [][]float64 {
    out := make([][]float64, len(X))
    for i := range X { out[i] = dt.leaf(X[i]) }
    return out
}

func (dt *DecisionTree) leaf(x []float64) []float64 {
    n := dt.Root
    if n == nil { return uniform(dt.NClasses) }
    for !n.IsLeaf {
        if x[n.Feature] <= n.Threshold { n = n.Left } else { n = n.Right }
        if n == nil { return uniform(dt.NClasses) }
    }
    return n.Proba
}

type builder struct {
    X    [][]float64
    y    []int
    k    int
    w    []float64 // sample weight including class weight
    n    []float64 // bootstrap multiplicity
    tree *DecisionTree
}

type split struct {
    feature   int
    threshold float64
    at        int // rows [0, at) of the sorted order go left
    impurity  float64
    gini      [2]float64
    weight    [2]float64
}

func (b *builder) build(idx []int, depth int) *DTNode {
    dist, total := b.distribution(idx)
    g := gini(dist, total)
    samples := 0.0
    for _, i := range idx { samples += b.n[i] }

    leaf := func() *DTNode {
        p := make([]float64, b.k)
        if total > 0 {
            for c := range dist { p[c] = dist[c] / total }
        }
        return &DTNode{IsLeaf: true, Proba: p}
    }
    if g <= 0 || samples < float64(b.tree.MinSamplesSplit) { return leaf() }
    if b.tree.MaxDepth > 0 && depth >= b.tree.MaxDepth { return leaf() }

    best, order := b.bestSplit(idx, total)
    if best == nil { return leaf() }

    left := append([]int(nil), order[:best.at]...)
    right := append([]int(nil), order[best.at:]...)
    b.tree.Importances[best.feature] += total*g - best.weight[0]*best.gini[0] - best.weight[1]*best.gini[1]
    b.tree.Splits++

    return &DTNode{
        Feature:   best.feature,
        Threshold: best.threshold,
        Left:      b.build(left, depth+1),
        Right:     b.build(right, depth+1),
    }
}

// bestSplit scans features in random order until MaxFeatures non-constant
// ones were evaluated. It returns the rows sorted on the winning feature.
func (b *builder) bestSplit(idx []int, total float64) (*split, []int) {
    nFeats := len(b.X[0])
    maxF := b.tree.MaxFeatures
    if maxF <= 0 || maxF > nFeats { maxF = nFeats }

    var best *split
    var bestOrder []int
    sorted := make([]int, len(idx))
    visited := 0
    for _, f := range b.tree.rnd.Perm(nFeats) {
        if visited >= maxF { break }
        copy(sorted, idx)
        sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
        if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] { continue }
        visited++

        s := b.scan(sorted, f, total)
        if s != nil && (best == nil || s.impurity < best.impurity) {
            best = s
            bestOrder = append(bestOrder[:0], sorted...)
        }
    }
    return best, bestOrder
}

func (b *builder) scan(sorted []int, f int, total float64) *split {
    left := make([]float64, b.k)
    right, _ := b.distribution(sorted)
    wl := 0.0
    var best *split
    for pos := 0; pos < len(sorted)-1; pos++ {
        i := sorted[pos]
        left[b.y[i]] += b.w[i]
        right[b.y[i]] -= b.w[i]
        wl += b.w[i]

        lo, hi := b.X[i][f], b.X[sorted[pos+1]][f]
        if lo == hi { continue }
        wr := total - wl
        gl, gr := gini(left, wl), gini(right, wr)
        imp := (wl*gl + wr*gr) / total
        if best == nil || imp < best.impurity {
            thr := lo + (hi-lo)/2
            if thr >= hi { thr = lo }
            best = &split{feature: f, threshold: thr, at: pos + 1, impurity: imp, gini: [2]float64{gl, gr}, weight: [2]float64{wl, wr}}
        }
    }
    return best
}

func (b *builder) distribution(idx []int) ([]float64, float64) {
    dist := make([]float64, b.k)
    total := 0.0
    for _, i := range idx {
        dist[b.y[i]] += b.w[i]
        total += b.w[i]
    }
    return dist, total
}

func gini(dist []float64, total float64) float64 {
    if total <= 0 { return 0 }
    s := 0.0
    for _, d := range dist {
        p := d / total
        s += p * p
    }
    return math.Max(0, 1-s)
}

func uniform(k int) []float64 {
    out := make([]float64, k)
    for i := range out { out[i] = 1 / float64(k) }
    return out
}
