package preprocess

import (
    "strconv"

    "tensicare/internal/data"
)

type ColumnKind int

const (
    NumericColumn ColumnKind = iota
    CategoricalColumn
)

func (k ColumnKind) String() string {
    if k == CategoricalColumn { return "categorical" }
    return "numeric"
}

// Column is one typed column of a CleanTable. Categorical values are codes
// into Categories and carry no order.
type Column struct {
    Name       string
    Kind       ColumnKind
    Values     []float64
    Categories []string
}

// CleanTable has no duplicate rows, no missing cells and only numeric values.
type CleanTable struct {
    Columns []Column
    Report  *Report
}

func (t *CleanTable) NumRows() int {
    if len(t.Columns) == 0 { return 0 }
    return len(t.Columns[0].Values)
}

func (t *CleanTable) Names() []string {
    out := make([]string, len(t.Columns))
    for i, c := range t.Columns { out[i] = c.Name }
    return out
}

func (t *CleanTable) Column(name string) (*Column, bool) {
    for i := range t.Columns {
        if t.Columns[i].Name == name { return &t.Columns[i], true }
    }
    return nil, false
}

// Row returns the i-th row in column order.
func (t *CleanTable) Row(i int) []float64 {
    out := make([]float64, len(t.Columns))
    for j := range t.Columns { out[j] = t.Columns[j].Values[i] }
    return out
}

// AsRaw renders the table back to text. Categorical columns are written with
// their category text and stay text columns even when every surviving
// category looks numeric, so a second Clean reproduces the same codes.
func (t *CleanTable) AsRaw() *data.RawTable {
    n := t.NumRows()
    rows := make([][]string, n)
    for i := 0; i < n; i++ {
        rows[i] = make([]string, len(t.Columns))
        for j, c := range t.Columns {
            if c.Kind == CategoricalColumn {
                rows[i][j] = c.Categories[int(c.Values[i])]
            } else {
                rows[i][j] = strconv.FormatFloat(c.Values[i], 'g', -1, 64)
            }
        }
    }
    raw := data.NewRawTable(t.Names(), rows)
    for j, c := range t.Columns {
        if c.Kind == CategoricalColumn { raw.Columns[j].Kind = data.Text }
    }
    return raw
}
