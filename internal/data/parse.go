package data

import (
    "bytes"
    "encoding/csv"
    "errors"
    "fmt"
    "io"
    "strings"
)

var (
    ErrEmptyInput      = errors.New("empty input")
    ErrNoColumns       = errors.New("header row has no columns")
    ErrBlankHeader     = errors.New("blank column name in header")
    ErrDuplicateHeader = errors.New("duplicate column name in header")
)

// ParseError reports a malformed upload. Line is 1-based, 0 when the failure
// is not tied to a line.
type ParseError struct {
    Line int
    Err  error
}

func (e *ParseError) Error() string {
    if e.Line > 0 { return fmt.Sprintf("parse dataset: line %d: %v", e.Line, e.Err) }
    return fmt.Sprintf("parse dataset: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func Parse(r io.Reader) (*RawTable, error) {
    b, err := io.ReadAll(r)
    if err != nil { return nil, &ParseError{Err: err} }
    return ParseBytes(b)
}

// ParseBytes parses a delimited text table with a header row. The delimiter
// is detected from the header line among comma, semicolon and tab.
func ParseBytes(b []byte) (*RawTable, error) {
    b = bytes.TrimPrefix(b, utf8BOM)
    if len(bytes.TrimSpace(b)) == 0 { return nil, &ParseError{Err: ErrEmptyInput} }

    cr := csv.NewReader(bytes.NewReader(b))
    cr.Comma = detectDelimiter(b)
    cr.TrimLeadingSpace = true

    header, err := cr.Read()
    if err != nil { return nil, wrapCSVError(err) }
    seen := make(map[string]struct{}, len(header))
    for i := range header {
        header[i] = strings.TrimSpace(header[i])
        if header[i] == "" {
            if len(header) == 1 { return nil, &ParseError{Line: 1, Err: ErrNoColumns} }
            return nil, &ParseError{Line: 1, Err: fmt.Errorf("%w at position %d", ErrBlankHeader, i+1)}
        }
        if _, dup := seen[header[i]]; dup {
            return nil, &ParseError{Line: 1, Err: fmt.Errorf("%w: %q", ErrDuplicateHeader, header[i])}
        }
        seen[header[i]] = struct{}{}
    }

    rows := [][]string{}
    for {
        rec, err := cr.Read()
        if err == io.EOF { break }
        if err != nil { return nil, wrapCSVError(err) }
        for i := range rec { rec[i] = strings.TrimSpace(rec[i]) }
        rows = append(rows, rec)
    }
    t := NewRawTable(header, rows)
    t.size = int64(len(b))
    return t, nil
}

func wrapCSVError(err error) error {
    var pe *csv.ParseError
    if errors.As(err, &pe) { return &ParseError{Line: pe.Line, Err: pe.Err} }
    return &ParseError{Err: err}
}

func detectDelimiter(b []byte) rune {
    line := b
    if i := bytes.IndexByte(b, '\n'); i >= 0 { line = b[:i] }
    best, bestN := ',', 0
    for _, d := range []rune{',', ';', '\t'} {
        if n := bytes.Count(line, []byte(string(d))); n > bestN { best, bestN = d, n }
    }
    return best
}
