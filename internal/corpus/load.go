// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package corpus

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

var requiredColumns = []string{"instruction", "response", "intent", "category"}

// Load reads raw records from a dataset file. The format is chosen by
// extension: .csv, or .jsonl/.json for one JSON object per line.
func Load(ctx context.Context, path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, boterr.Wrap(err, boterr.CodeCorpusLoadReadFailure, "opening dataset", boterr.FieldPath(path))
	}
	defer func() { _ = f.Close() }()

	var records []Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = ReadCSV(ctx, f)
	case ".jsonl", ".json", ".ndjson":
		records, err = ReadJSONL(ctx, f)
	default:
		return nil, boterr.New(boterr.CodeCorpusLoadInvalidFormat, "unsupported dataset extension "+ext, boterr.FieldPath(path))
	}
	if err != nil {
		return nil, boterr.With(err, boterr.FieldPath(path))
	}
	if len(records) == 0 {
		return nil, boterr.New(boterr.CodeCorpusLoadEmpty, "dataset contains no records", boterr.FieldPath(path))
	}
	return records, nil
}

// ReadCSV parses a CSV dataset with a header row. Columns may appear in any
// order; columns other than instruction, response, intent and category are
// ignored.
func ReadCSV(ctx context.Context, r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeCorpusLoadInvalidFormat, "reading csv header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, boterr.Errorf(boterr.CodeCorpusLoadInvalidFormat, "csv header is missing column %q", name)
		}
	}

	field := func(row []string, name string) string {
		if i := cols[name]; i < len(row) {
			return row[i]
		}
		return ""
	}

	var records []Record
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, boterr.Wrapf(err, boterr.CodeCorpusLoadInvalidFormat, "reading csv line %d", line)
		}
		records = append(records, Record{
			Instruction: field(row, "instruction"),
			Response:    field(row, "response"),
			Intent:      field(row, "intent"),
			Category:    field(row, "category"),
		})
	}
	return records, nil
}

// ReadJSONL parses one JSON record per line. Blank lines are skipped.
func ReadJSONL(ctx context.Context, r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, boterr.Wrapf(err, boterr.CodeCorpusLoadInvalidFormat, "parsing dataset line %d", lineNo)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeCorpusLoadReadFailure, "reading dataset")
	}
	return records, nil
}
