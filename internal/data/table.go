package data

import (
    "encoding/csv"
    "io"
    "strconv"
    "strings"
)

type Kind int

const (
    Numeric Kind = iota
    Text
)

func (k Kind) String() string {
    if k == Text { return "text" }
    return "numeric"
}

type Column struct {
    Name string
    Kind Kind
}

// RawTable is an uploaded dataset as parsed, cells kept as trimmed text.
// Callers must treat it as read-only; a new upload replaces it wholesale.
type RawTable struct {
    Columns []Column
    Rows    [][]string
    size    int64
}

// naValues mirrors the default NA markers of common dataframe readers.
var naValues = map[string]struct{}{
    "": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
    "-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
    "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func IsMissing(cell string) bool {
    _, ok := naValues[strings.TrimSpace(cell)]
    return ok
}

// ParseNumber parses a non-missing numeric cell.
func ParseNumber(cell string) (float64, bool) {
    if IsMissing(cell) { return 0, false }
    v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
    if err != nil { return 0, false }
    return v, true
}

// NewRawTable builds a table from a header and rows, inferring column kinds.
// Rows must already have len(header) cells.
func NewRawTable(header []string, rows [][]string) *RawTable {
    t := &RawTable{Columns: make([]Column, len(header)), Rows: rows}
    for j, name := range header {
        t.Columns[j] = Column{Name: name, Kind: inferKind(rows, j)}
    }
    return t
}

func inferKind(rows [][]string, j int) Kind {
    for _, r := range rows {
        if IsMissing(r[j]) { continue }
        if _, ok := ParseNumber(r[j]); !ok { return Text }
    }
    return Numeric
}

func (t *RawTable) NumRows() int { return len(t.Rows) }
func (t *RawTable) NumColumns() int { return len(t.Columns) }

func (t *RawTable) Header() []string {
    out := make([]string, len(t.Columns))
    for i, c := range t.Columns { out[i] = c.Name }
    return out
}

// ColumnIndex returns the position of the named column or -1.
func (t *RawTable) ColumnIndex(name string) int {
    for i, c := range t.Columns { if c.Name == name { return i } }
    return -1
}

type ColumnSummary struct {
    Name    string `json:"name"`
    Kind    string `json:"kind"`
    NonNull int    `json:"non_null"`
    Null    int    `json:"null"`
}

type Summary struct {
    Rows      int             `json:"rows"`
    Columns   int             `json:"columns"`
    SizeBytes int64           `json:"size_bytes"`
    Schema    []ColumnSummary `json:"schema"`
}

func (t *RawTable) Summary() Summary {
    s := Summary{Rows: t.NumRows(), Columns: t.NumColumns(), SizeBytes: t.size}
    if s.SizeBytes == 0 {
        for _, r := range t.Rows { for _, c := range r { s.SizeBytes += int64(len(c)) + 1 } }
    }
    s.Schema = make([]ColumnSummary, len(t.Columns))
    for j, c := range t.Columns {
        cs := ColumnSummary{Name: c.Name, Kind: c.Kind.String()}
        for _, r := range t.Rows {
            if IsMissing(r[j]) { cs.Null++ } else { cs.NonNull++ }
        }
        s.Schema[j] = cs
    }
    return s
}

// MissingCells counts missing cells over the whole table.
func (t *RawTable) MissingCells() int {
    n := 0
    for _, r := range t.Rows { for _, c := range r { if IsMissing(c) { n++ } } }
    return n
}

func (t *RawTable) WriteCSV(w io.Writer) error {
    cw := csv.NewWriter(w)
    if err := cw.Write(t.Header()); err != nil { return err }
    for _, r := range t.Rows {
        if err := cw.Write(r); err != nil { return err }
    }
    cw.Flush()
    return cw.Error()
}
