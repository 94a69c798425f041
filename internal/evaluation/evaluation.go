package evaluation

import (
    "math"
    "sort"
)

type ClassMetrics struct {
    Label     float64 `json:"label"`
    Precision float64 `json:"precision"`
    Recall    float64 `json:"recall"`
    F1        float64 `json:"f1"`
    Support   int     `json:"support"`
}

type Average struct {
    Precision float64 `json:"precision"`
    Recall    float64 `json:"recall"`
    F1        float64 `json:"f1"`
    Support   int     `json:"support"`
}

type Importance struct {
    Feature    string  `json:"feature"`
    Importance float64 `json:"importance"`
}

// Result holds the holdout metrics of a trained model.
type Result struct {
    Accuracy float64 `json:"accuracy"`
    // Labels orders the rows (true) and columns (predicted) of Confusion.
    Labels      []float64      `json:"labels"`
    Confusion   [][]int        `json:"confusion_matrix"`
    Classes     []ClassMetrics `json:"classes"`
    MacroAvg    Average        `json:"macro_avg"`
    WeightedAvg Average        `json:"weighted_avg"`
    // ROCAUC and PRAUC are only set for binary targets with both classes in the test rows.
    ROCAUC      *float64     `json:"roc_auc,omitempty"`
    PRAUC       *float64     `json:"pr_auc,omitempty"`
    Importances []Importance `json:"feature_importances"`
    TrainRows   int          `json:"train_rows"`
    TestRows    int          `json:"test_rows"`
}

// Evaluate scores predictions against the truth. proba columns follow
// classes, the label set the model was trained on.
func Evaluate(yTrue, yPred []float64, proba [][]float64, classes []float64) *Result {
    r := &Result{Accuracy: Accuracy(yTrue, yPred)}
    r.Labels, r.Confusion = Confusion(yTrue, yPred)
    r.Classes, r.MacroAvg, r.WeightedAvg = Report(r.Labels, r.Confusion)

    if len(classes) == 2 && proba != nil {
        pos := classes[1]
        y := make([]int, len(yTrue))
        s := make([]float64, len(yTrue))
        for i := range yTrue {
            if yTrue[i] == pos { y[i] = 1 }
            s[i] = proba[i][1]
        }
        if auc, ok := ROCAUC(y, s); ok {
            pr := PRAUC(y, s)
            r.ROCAUC, r.PRAUC = &auc, &pr
        }
    }
    r.TestRows = len(yTrue)
    return r
}

func Accuracy(y, p []float64) float64 {
    if len(y) == 0 { return 0 }
    c := 0
    for i := range y { if y[i] == p[i] { c++ } }
    return float64(c) / float64(len(y))
}

// Confusion counts (true, predicted) pairs over the ascending union of labels.
func Confusion(y, p []float64) ([]float64, [][]int) {
    seen := map[float64]bool{}
    labels := []float64{}
    for _, v := range append(append([]float64(nil), y...), p...) {
        if !seen[v] { seen[v] = true; labels = append(labels, v) }
    }
    sort.Float64s(labels)
    pos := make(map[float64]int, len(labels))
    for i, l := range labels { pos[l] = i }

    m := make([][]int, len(labels))
    for i := range m { m[i] = make([]int, len(labels)) }
    for i := range y { m[pos[y[i]]][pos[p[i]]]++ }
    return labels, m
}

// Report derives per-class precision, recall and F1 from a confusion matrix.
// Undefined ratios count as 0.
func Report(labels []float64, m [][]int) ([]ClassMetrics, Average, Average) {
    out := make([]ClassMetrics, len(labels))
    var macro, weighted Average
    total := 0
    for c := range labels {
        tp, predicted, actual := m[c][c], 0, 0
        for k := range labels {
            predicted += m[k][c]
            actual += m[c][k]
        }
        cm := ClassMetrics{Label: labels[c], Support: actual}
        if predicted > 0 { cm.Precision = float64(tp) / float64(predicted) }
        if actual > 0 { cm.Recall = float64(tp) / float64(actual) }
        if cm.Precision+cm.Recall > 0 { cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall) }
        out[c] = cm

        macro.Precision += cm.Precision
        macro.Recall += cm.Recall
        macro.F1 += cm.F1
        weighted.Precision += cm.Precision * float64(actual)
        weighted.Recall += cm.Recall * float64(actual)
        weighted.F1 += cm.F1 * float64(actual)
        total += actual
    }
    if k := float64(len(labels)); k > 0 {
        macro.Precision /= k
        macro.Recall /= k
        macro.F1 /= k
    }
    if total > 0 {
        weighted.Precision /= float64(total)
        weighted.Recall /= float64(total)
        weighted.F1 /= float64(total)
    }
    macro.Support, weighted.Support = total, total
    return out, macro, weighted
}

// ROCAUC integrates the ROC curve with the trapezoid rule, grouping tied
// scores. ok is false when y holds a single class.
func ROCAUC(y []int, ps []float64) (float64, bool) {
    type pair struct{ s float64; y int }
    n := len(y)
    pairs := make([]pair, n)
    for i := 0; i < n; i++ { pairs[i] = pair{ps[i], y[i]} }
    sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].s > pairs[j].s })
    var pos, neg int
    for _, p := range pairs { if p.y == 1 { pos++ } else { neg++ } }
    if pos == 0 || neg == 0 { return 0, false }
    tp, fp := 0, 0
    prevS := math.Inf(1)
    var auc float64
    prevTPR, prevFPR := 0.0, 0.0
    for i := 0; i < n; i++ {
        if pairs[i].s != prevS {
            tpr := float64(tp) / float64(pos)
            fpr := float64(fp) / float64(neg)
            auc += (fpr - prevFPR) * (tpr + prevTPR) / 2.0
            prevTPR, prevFPR = tpr, fpr
            prevS = pairs[i].s
        }
        if pairs[i].y == 1 { tp++ } else { fp++ }
    }
    tpr := float64(tp) / float64(pos)
    fpr := float64(fp) / float64(neg)
    auc += (fpr - prevFPR) * (tpr + prevTPR) / 2.0
    return auc, true
}

// PRAUC is the step-wise area under the precision/recall curve.
func PRAUC(y []int, ps []float64) float64 {
    type pair struct{ s float64; y int }
    n := len(y)
    pairs := make([]pair, n)
    for i := 0; i < n; i++ { pairs[i] = pair{ps[i], y[i]} }
    sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].s > pairs[j].s })
    var tp, fp, fn int
    for _, p := range pairs { if p.y == 1 { fn++ } }
    var prevRec, auc float64
    for i := 0; i < n; i++ {
        if pairs[i].y == 1 { tp++; fn-- } else { fp++ }
        var prec, rec float64
        if tp+fp > 0 { prec = float64(tp) / float64(tp+fp) }
        if tp+fn > 0 { rec = float64(tp) / float64(tp+fn) }
        auc += (rec - prevRec) * prec
        prevRec = rec
    }
    return auc
}

// RankImportances pairs names with importances, highest first. Ties keep
// the feature order.
func RankImportances(names []string, values []float64) []Importance {
    out := make([]Importance, len(names))
    for i := range names { out[i] = Importance{Feature: names[i], Importance: values[i]} }
    sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
    return out
}
