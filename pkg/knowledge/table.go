package knowledge

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ColumnProfile describes one column of a tabular artifact.
type ColumnProfile struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	NullCount int    `json:"null_count"`
}

// TableSummary is the bounded structural representation of a tabular
// artifact: shape, column profiles, and a small head sample. It stays
// fixed-size no matter how many rows the table has, so follow-up
// questions never re-transmit the whole table.
type TableSummary struct {
	Rows    int             `json:"rows"`
	Cols    int             `json:"cols"`
	Columns []ColumnProfile `json:"columns"`
	Head    [][]string      `json:"head"`
}

var nullMarkers = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"nan":  true,
	"none": true,
}

func isNull(value string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(value))]
}

// BuildTableSummary parses CSV bytes into a TableSummary. The first record
// is the header row; a payload with no records at all yields ErrNoHeader.
// A header with zero data rows is valid and reports shape (0, n).
func BuildTableSummary(data []byte, headRows int) (*TableSummary, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	summary := &TableSummary{
		Cols:    len(header),
		Columns: make([]ColumnProfile, len(header)),
	}
	for i, name := range header {
		summary.Columns[i] = ColumnProfile{Name: strings.TrimSpace(name)}
	}

	types := make([]typeTracker, len(header))

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV row %d: %w", summary.Rows+2, err)
		}

		for i := range summary.Columns {
			var value string
			if i < len(record) {
				value = record[i]
			}
			if isNull(value) {
				summary.Columns[i].NullCount++
				continue
			}
			types[i].observe(value)
		}

		if summary.Rows < headRows {
			row := make([]string, len(header))
			copy(row, record)
			summary.Head = append(summary.Head, row)
		}
		summary.Rows++
	}

	for i := range summary.Columns {
		summary.Columns[i].Type = types[i].result()
	}

	return summary, nil
}

// typeTracker infers the narrowest type that fits every observed value.
type typeTracker struct {
	seen       bool
	notInteger bool
	notFloat   bool
	notBoolean bool
}

func (t *typeTracker) observe(value string) {
	v := strings.TrimSpace(value)
	t.seen = true

	if _, err := strconv.ParseInt(v, 10, 64); err != nil {
		t.notInteger = true
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		t.notFloat = true
	}
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
	default:
		t.notBoolean = true
	}
}

func (t *typeTracker) result() string {
	switch {
	case !t.seen:
		return "unknown"
	case !t.notBoolean:
		return "boolean"
	case !t.notInteger:
		return "integer"
	case !t.notFloat:
		return "float"
	default:
		return "string"
	}
}

// Render formats the summary as prompt text for the generation call.
func (s *TableSummary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Table shape: %d rows x %d columns\n", s.Rows, s.Cols)
	b.WriteString("Columns:\n")
	for _, col := range s.Columns {
		fmt.Fprintf(&b, "  - %s (%s, %d null values)\n", col.Name, col.Type, col.NullCount)
	}

	if len(s.Head) > 0 {
		fmt.Fprintf(&b, "First %d rows:\n", len(s.Head))
		names := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			names[i] = col.Name
		}
		b.WriteString("  " + strings.Join(names, ", ") + "\n")
		for _, row := range s.Head {
			b.WriteString("  " + strings.Join(row, ", ") + "\n")
		}
	} else {
		b.WriteString("The table has no data rows.\n")
	}

	return b.String()
}
