package prediction

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ScoreColumn is the value column every source must carry
const ScoreColumn = "score"

// ReadCSV reads a prediction table whose header names the index levels and a score column.
// Every non-score column is treated as an index level, in header order.
func ReadCSV(r io.Reader) (RawTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return RawTable{}, fmt.Errorf("read csv header: %w", err)
	}

	scoreCol := -1
	var levels []int
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if strings.EqualFold(h, ScoreColumn) {
			scoreCol = i
			continue
		}
		levels = append(levels, i)
		names = append(names, h)
	}
	if scoreCol < 0 {
		return RawTable{}, fmt.Errorf("csv header %v has no %q column", header, ScoreColumn)
	}

	raw := RawTable{IndexNames: names}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return RawTable{}, fmt.Errorf("read csv line %d: %w", line, err)
		}

		score, err := parseScore(rec[scoreCol])
		if err != nil {
			return RawTable{}, fmt.Errorf("csv line %d: %w", line, err)
		}

		keys := make([]string, len(levels))
		for j, col := range levels {
			keys[j] = rec[col]
		}
		raw.Rows = append(raw.Rows, RawRow{Keys: keys, Score: score})
	}

	return raw, nil
}

// parseScore accepts empty cells and "nan" as NaN; NewTable skips them
func parseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nan(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	return v, nil
}

// LoadCSV opens path and builds a Table from it
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer f.Close()

	raw, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return NewTable(raw)
}
