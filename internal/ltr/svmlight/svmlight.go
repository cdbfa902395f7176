// Package svmlight parses the canonical line-oriented training format:
//
//	<label> qid:<query_id> <feature_index>:<value> ... # <description>
//
// Consecutive lines sharing a qid form one query's RankList; file order is
// preserved, which makes it the tie-break baseline for all ranking.
package svmlight

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/marcosfpr/adarank/internal/ltr"
	"github.com/marcosfpr/adarank/pkg/errors"
)

// FormatError describes a malformed input line.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return errors.ErrInvalidFormat
}

// Load reads a dataset from a file on disk.
func Load(path string) (ltr.DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()
	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	return ds, nil
}

// Parse reads a dataset from r, grouping consecutive lines by query id.
// Blank lines are skipped.
func Parse(r io.Reader) (ltr.DataSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ds ltr.DataSet
	var current []ltr.DataPoint
	var currentQID int64
	lineNo := 0

	flush := func() {
		if len(current) > 0 {
			ds = append(ds, ltr.NewRankList(current))
			current = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dp, err := ParseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		if len(current) > 0 && dp.QueryID != currentQID {
			flush()
		}
		currentQID = dp.QueryID
		current = append(current, dp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	flush()
	return ds, nil
}

// ParseLine parses a single data line. lineNo is used in error reporting
// only.
func ParseLine(line string, lineNo int) (ltr.DataPoint, error) {
	var dp ltr.DataPoint

	body, desc, hasDesc := strings.Cut(line, "#")
	if hasDesc {
		dp.Description = strings.TrimSpace(desc)
	}

	fields := strings.Fields(body)
	if len(fields) < 2 {
		return dp, &FormatError{Line: lineNo, Reason: "expected '<label> qid:<id> ...'"}
	}

	label, err := strconv.Atoi(fields[0])
	if err != nil || label < 0 {
		return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("label %q is not a non-negative integer", fields[0])}
	}
	dp.Label = label

	prefix, qidStr, ok := strings.Cut(fields[1], ":")
	if !ok || prefix != "qid" {
		return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("expected qid:<id>, got %q", fields[1])}
	}
	qid, err := strconv.ParseInt(qidStr, 10, 64)
	if err != nil {
		return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("query id %q is not an integer", qidStr)}
	}
	dp.QueryID = qid

	seen := make(map[int]bool, len(fields)-2)
	for _, pair := range fields[2:] {
		idxStr, valStr, ok := strings.Cut(pair, ":")
		if !ok {
			return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("malformed feature pair %q", pair)}
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 1 {
			return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("feature index %q is not a positive integer", idxStr)}
		}
		if seen[idx] {
			return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("duplicate feature index %d", idx)}
		}
		seen[idx] = true
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return dp, &FormatError{Line: lineNo, Reason: fmt.Sprintf("feature value %q is not a number", valStr)}
		}
		if idx > len(dp.Features) {
			grown := make([]float64, idx)
			copy(grown, dp.Features)
			dp.Features = grown
		}
		dp.Features[idx-1] = val
	}
	return dp, nil
}
