package preprocess

import (
    "errors"
    "fmt"
    "math"
    "sort"
    "strconv"
    "strings"

    "gonum.org/v1/gonum/floats"
    "gonum.org/v1/gonum/stat"

    "tensicare/internal/data"
)

type Scaling string

const (
    ScaleNone        Scaling = ""
    ScaleStandardize Scaling = "standardize"
    ScaleNormalize   Scaling = "normalize"
)

type Encoding string

const (
    EncodingFirstSeen Encoding = "first_seen"
    EncodingSorted    Encoding = "sorted"
)

var (
    ErrUnknownScaling  = errors.New("unknown scaling method")
    ErrUnknownEncoding = errors.New("unknown encoding order")
    ErrUnknownColumn   = errors.New("unknown column")
)

type Options struct {
    Scaling  Scaling  `json:"scaling"`
    Encoding Encoding `json:"encoding"`
    // Exclude lists numeric columns left out of scaling, typically the target.
    Exclude []string `json:"exclude"`
}

type ColumnCount struct {
    Column string `json:"column"`
    Count  int    `json:"count"`
}

// ScalerParams describes x' = (x - Center) / Scale for one column.
type ScalerParams struct {
    Column string  `json:"column"`
    Method Scaling `json:"method"`
    Center float64 `json:"center"`
    Scale  float64 `json:"scale"`
}

type Report struct {
    RowsBefore         int                 `json:"rows_before"`
    RowsAfter          int                 `json:"rows_after"`
    Columns            int                 `json:"columns"`
    DuplicatesRemoved  int                 `json:"duplicates_removed"`
    MissingRowsRemoved int                 `json:"missing_rows_removed"`
    MissingBefore      []ColumnCount       `json:"missing_values_before"`
    MissingAfter       int                 `json:"missing_total_after"`
    Scaling            Scaling             `json:"scaling,omitempty"`
    Scalers            []ScalerParams      `json:"scalers,omitempty"`
    Encodings          map[string][]string `json:"encodings,omitempty"`
    Warnings           []string            `json:"warnings,omitempty"`
}

// zeroSpread is the relative threshold under which a std or range counts as zero.
const zeroSpread = 1e-12

func (o Options) validate(raw *data.RawTable) error {
    switch o.Scaling {
    case ScaleNone, ScaleStandardize, ScaleNormalize:
    default:
        return fmt.Errorf("%w: %q", ErrUnknownScaling, o.Scaling)
    }
    switch o.Encoding {
    case "", EncodingFirstSeen, EncodingSorted:
    default:
        return fmt.Errorf("%w: %q", ErrUnknownEncoding, o.Encoding)
    }
    for _, c := range o.Exclude {
        if raw.ColumnIndex(c) < 0 { return fmt.Errorf("exclude from scaling: %w: %q", ErrUnknownColumn, c) }
    }
    return nil
}

// Clean drops duplicate rows, then rows with a missing cell, encodes text
// columns to dense codes and optionally scales numeric columns, in that order.
func Clean(raw *data.RawTable, opts Options) (*CleanTable, *Report, error) {
    if opts.Scaling == "none" { opts.Scaling = ScaleNone }
    if err := opts.validate(raw); err != nil { return nil, nil, err }

    rep := &Report{RowsBefore: raw.NumRows(), Columns: raw.NumColumns(), Scaling: opts.Scaling}
    rep.MissingBefore = missingPerColumn(raw)

    kept := dropDuplicates(raw)
    rep.DuplicatesRemoved = raw.NumRows() - len(kept)

    complete := make([]int, 0, len(kept))
    for _, i := range kept {
        if !hasMissing(raw.Rows[i]) { complete = append(complete, i) }
    }
    rep.MissingRowsRemoved = len(kept) - len(complete)
    rep.RowsAfter = len(complete)

    out := &CleanTable{Columns: make([]Column, raw.NumColumns()), Report: rep}
    for j, rc := range raw.Columns {
        col := Column{Name: rc.Name, Values: make([]float64, len(complete))}
        if rc.Kind == data.Text {
            col.Kind = CategoricalColumn
            col.Values, col.Categories = encode(raw, j, complete, opts.Encoding)
            if rep.Encodings == nil { rep.Encodings = map[string][]string{} }
            rep.Encodings[rc.Name] = col.Categories
        } else {
            for k, i := range complete {
                v, _ := data.ParseNumber(raw.Rows[i][j])
                col.Values[k] = v
            }
        }
        out.Columns[j] = col
    }

    if opts.Scaling != ScaleNone { scale(out, opts, rep) }
    return out, rep, nil
}

func missingPerColumn(raw *data.RawTable) []ColumnCount {
    out := make([]ColumnCount, raw.NumColumns())
    for j, c := range raw.Columns {
        out[j].Column = c.Name
        for _, r := range raw.Rows { if data.IsMissing(r[j]) { out[j].Count++ } }
    }
    return out
}

func hasMissing(row []string) bool {
    for _, c := range row { if data.IsMissing(c) { return true } }
    return false
}

// dropDuplicates returns the indices of the first occurrence of every row.
// Numeric cells compare by value, so "1" and "1.0" are the same cell.
func dropDuplicates(raw *data.RawTable) []int {
    seen := make(map[string]struct{}, raw.NumRows())
    kept := make([]int, 0, raw.NumRows())
    var sb strings.Builder
    for i, r := range raw.Rows {
        sb.Reset()
        for j, c := range r {
            if j > 0 { sb.WriteByte(0x1f) }
            switch {
            case data.IsMissing(c):
                sb.WriteString("\x00NA")
            case raw.Columns[j].Kind == data.Numeric:
                v, _ := data.ParseNumber(c)
                sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
            default:
                sb.WriteString(c)
            }
        }
        key := sb.String()
        if _, dup := seen[key]; dup { continue }
        seen[key] = struct{}{}
        kept = append(kept, i)
    }
    return kept
}

func encode(raw *data.RawTable, j int, rows []int, order Encoding) ([]float64, []string) {
    cats := []string{}
    index := map[string]int{}
    for _, i := range rows {
        v := raw.Rows[i][j]
        if _, ok := index[v]; !ok {
            index[v] = len(cats)
            cats = append(cats, v)
        }
    }
    if order == EncodingSorted {
        sort.Strings(cats)
        for k, c := range cats { index[c] = k }
    }
    codes := make([]float64, len(rows))
    for k, i := range rows { codes[k] = float64(index[raw.Rows[i][j]]) }
    return codes, cats
}

func scale(t *CleanTable, opts Options, rep *Report) {
    excluded := map[string]bool{}
    for _, c := range opts.Exclude { excluded[c] = true }
    if t.NumRows() == 0 {
        rep.Warnings = append(rep.Warnings, "no rows left after cleaning, scaling skipped")
        return
    }
    for j := range t.Columns {
        col := &t.Columns[j]
        if col.Kind != NumericColumn || excluded[col.Name] { continue }

        var p ScalerParams
        switch opts.Scaling {
        case ScaleStandardize:
            mean, std := stat.PopMeanStdDev(col.Values, nil)
            p = ScalerParams{Column: col.Name, Method: ScaleStandardize, Center: mean, Scale: std}
        case ScaleNormalize:
            lo, hi := floats.Min(col.Values), floats.Max(col.Values)
            p = ScalerParams{Column: col.Name, Method: ScaleNormalize, Center: lo, Scale: hi - lo}
        }
        if p.Scale <= zeroSpread*math.Max(1, math.Abs(p.Center)) {
            rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %q has zero spread, left unscaled", col.Name))
            continue
        }
        for i, v := range col.Values { col.Values[i] = p.Apply(v) }
        rep.Scalers = append(rep.Scalers, p)
    }
}

// Apply scales one value with the parameters.
func (p ScalerParams) Apply(v float64) float64 { return (v - p.Center) / p.Scale }
