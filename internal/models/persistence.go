package models

import (
    "bytes"
    "encoding/gob"
    "errors"
    "fmt"
    "math"
    "strconv"

    "tensicare/internal/data"
    "tensicare/internal/preprocess"
)

var (
    ErrInvalidModel    = errors.New("invalid model blob")
    ErrMissingValue    = errors.New("missing value")
    ErrNotNumeric      = errors.New("not a number")
    ErrUnknownCategory = errors.New("unknown category")
)

var magic = []byte("TNSC")

const formatVersion byte = 1

// Transform maps one raw input cell to the value the forest was trained on.
type Transform struct {
    Feature    string
    Kind       preprocess.ColumnKind
    Categories []string
    Scaler     *preprocess.ScalerParams
}

// Encode parses a raw cell. Categorical features take the category text or
// its numeric code; numeric features are scaled like the training column.
func (tr Transform) Encode(cell string) (float64, error) {
    if data.IsMissing(cell) { return 0, fmt.Errorf("%s: %w", tr.Feature, ErrMissingValue) }
    if tr.Kind == preprocess.CategoricalColumn {
        for i, c := range tr.Categories {
            if c == cell { return float64(i), nil }
        }
        if v, ok := data.ParseNumber(cell); ok && v == math.Trunc(v) && v >= 0 && int(v) < len(tr.Categories) {
            return v, nil
        }
        return 0, fmt.Errorf("%s: %w %q", tr.Feature, ErrUnknownCategory, cell)
    }
    v, ok := data.ParseNumber(cell)
    if !ok { return 0, fmt.Errorf("%s: %w: %q", tr.Feature, ErrNotNumeric, cell) }
    if tr.Scaler != nil { v = tr.Scaler.Apply(v) }
    return v, nil
}

// TrainedModel is the forest together with what is needed to feed it raw rows.
type TrainedModel struct {
    Forest     *RandomForest
    Features   []string
    Target     string
    Transforms []Transform
    // TargetCategories names the classes when the target was a text column.
    TargetCategories []string
}

// TransformsFor collects the encoding and scaling applied to the named columns.
func TransformsFor(t *preprocess.CleanTable, names []string) []Transform {
    scalers := map[string]preprocess.ScalerParams{}
    if t.Report != nil {
        for _, s := range t.Report.Scalers { scalers[s.Column] = s }
    }
    out := make([]Transform, 0, len(names))
    for _, name := range names {
        tr := Transform{Feature: name}
        if c, ok := t.Column(name); ok {
            tr.Kind = c.Kind
            tr.Categories = append([]string(nil), c.Categories...)
        }
        if s, ok := scalers[name]; ok { tr.Scaler = &s }
        out = append(out, tr)
    }
    return out
}

// ClassName renders a class label, using the target categories when known.
func (m *TrainedModel) ClassName(label float64) string {
    i := int(label)
    if float64(i) == label && i >= 0 && i < len(m.TargetCategories) { return m.TargetCategories[i] }
    return strconv.FormatFloat(label, 'g', -1, 64)
}

func (m *TrainedModel) validate() error {
    switch {
    case m.Forest == nil || len(m.Forest.Trees) == 0:
        return errors.New("no trees")
    case len(m.Forest.Labels) < 2:
        return errors.New("fewer than two classes")
    case len(m.Features) == 0 || len(m.Features) != m.Forest.NFeatures:
        return errors.New("feature list does not match the forest")
    case len(m.Transforms) != len(m.Features):
        return errors.New("transform list does not match the features")
    case m.Target == "":
        return errors.New("no target")
    }
    if len(m.Forest.Importances) != m.Forest.NFeatures {
        return errors.New("importance list does not match the features")
    }
    for i, dt := range m.Forest.Trees {
        if dt == nil || dt.Root == nil { return fmt.Errorf("tree %d is empty", i) }
        if err := checkNode(dt.Root, m.Forest.NFeatures, len(m.Forest.Labels)); err != nil {
            return fmt.Errorf("tree %d: %w", i, err)
        }
    }
    return nil
}

// checkNode makes sure prediction can walk the subtree without leaving the
// feature or class ranges.
func checkNode(n *DTNode, nFeatures, nClasses int) error {
    if n.IsLeaf {
        if len(n.Proba) != nClasses { return fmt.Errorf("leaf has %d class probabilities, want %d", len(n.Proba), nClasses) }
        return nil
    }
    if n.Feature < 0 || n.Feature >= nFeatures { return fmt.Errorf("split on feature %d of %d", n.Feature, nFeatures) }
    if n.Left == nil || n.Right == nil { return errors.New("split node without both children") }
    if err := checkNode(n.Left, nFeatures, nClasses); err != nil { return err }
    return checkNode(n.Right, nFeatures, nClasses)
}

// Marshal writes the model as magic, format version and a gob payload.
func Marshal(m *TrainedModel) ([]byte, error) {
    if err := m.validate(); err != nil { return nil, fmt.Errorf("marshal model: %w", err) }
    var buf bytes.Buffer
    buf.Write(magic)
    buf.WriteByte(formatVersion)
    if err := gob.NewEncoder(&buf).Encode(m); err != nil { return nil, fmt.Errorf("marshal model: %w", err) }
    return buf.Bytes(), nil
}

func Unmarshal(b []byte) (*TrainedModel, error) {
    if len(b) <= len(magic) || !bytes.Equal(b[:len(magic)], magic) {
        return nil, fmt.Errorf("%w: not a model file", ErrInvalidModel)
    }
    if v := b[len(magic)]; v != formatVersion {
        return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidModel, v)
    }
    m := &TrainedModel{}
    if err := gob.NewDecoder(bytes.NewReader(b[len(magic)+1:])).Decode(m); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
    }
    if err := m.validate(); err != nil { return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err) }
    return m, nil
}
