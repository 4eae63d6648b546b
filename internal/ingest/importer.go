package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// SourceFormat selects a parsing strategy.
type SourceFormat string

const (
	FormatAuto      SourceFormat = "auto"
	FormatDelimited SourceFormat = "csv"
	FormatSQLDump   SourceFormat = "sql"
)

// DetectSourceFormat picks a strategy from the file extension. Everything
// that is not a SQL dump parses as delimited text.
func DetectSourceFormat(name string) SourceFormat {
	if strings.EqualFold(filepath.Ext(name), ".sql") {
		return FormatSQLDump
	}
	return FormatDelimited
}

const progressEvery = 500

// Importer drives a source through detection, tokenizing, column mapping,
// normalization and reconciliation. The zero value of every knob means
// auto-detect or catalog default.
type Importer struct {
	Store StoreOpener

	Format     SourceFormat  // FormatAuto picks by file extension
	Encoding   string        // forces a source encoding
	Delimiter  rune          // forces the field delimiter
	NoHeader   bool          // treat the first row as data
	Columns    ColumnMapping // explicit layout, skips name mapping
	DumpTable  string        // restrict dump parsing to one table
	DumpLayout ColumnMapping // tuple positions, nil uses DefaultDumpLayout

	Normalizer Normalizer
	MaxErrors  int
	Progress   func(rows int)
}

// ImportFrom runs one full import of src under pol and reports the outcome.
// Row-level problems are counted in the report; the returned error is nil
// unless the source format or the store scope itself failed.
func (imp *Importer) ImportFrom(ctx context.Context, src Source, pol Policy) (*Report, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	format := imp.Format
	if format == "" || format == FormatAuto {
		format = DetectSourceFormat(src.Name())
	}

	var (
		rows []Row
		pre  Report
	)
	switch format {
	case FormatSQLDump:
		rows, pre, err = imp.collectDump(rc, pol)
	default:
		rows, pre, err = imp.collectDelimited(rc, pol)
	}
	if err != nil {
		return nil, err
	}

	recon := &Reconciler{Store: imp.Store, MaxErrors: imp.MaxErrors}
	rep, err := recon.Apply(ctx, rows, pol)
	if err != nil {
		return nil, err
	}
	rep.Rows = pre.Rows
	rep.Skipped += pre.Skipped
	return &rep, nil
}

// collectDelimited streams a delimited text source into normalized rows,
// counting source rows and skips as it goes.
func (imp *Importer) collectDelimited(r io.Reader, pol Policy) ([]Row, Report, error) {
	var rep Report

	br := bufio.NewReaderSize(r, 64<<10)
	sample, _ := br.Peek(detectSample)
	if len(sample) == 0 {
		return nil, rep, nil
	}

	enc := imp.Encoding
	if enc == "" {
		detected, err := DetectEncoding(sample)
		if err != nil {
			return nil, rep, err
		}
		enc = detected
	}

	sc := bufio.NewScanner(NewDecodingReader(br, enc))
	sc.Buffer(make([]byte, 0, 64<<10), 10<<20)

	line := 0
	first := ""
	for sc.Scan() {
		line++
		first = strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(first) != "" {
			break
		}
		first = ""
	}
	if first == "" {
		if err := sc.Err(); err != nil {
			return nil, rep, fmt.Errorf("read source: %w", err)
		}
		return nil, rep, nil
	}

	delim := imp.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(first)
	}
	cells := SplitDelimited(first, delim)

	hasHeader := false
	if !imp.NoHeader && len(cells) > 0 {
		hasHeader = DetectHeader(cells)
	}

	mapping := imp.Columns
	if mapping == nil {
		names := make([]string, len(cells))
		for i, c := range cells {
			if hasHeader {
				names[i] = strings.TrimSpace(c)
			} else {
				names[i] = fmt.Sprintf("col_%d", i)
			}
		}
		mapped, err := MapColumns(names)
		if err != nil {
			return nil, rep, &FormatError{Reason: "map columns", Err: err}
		}
		mapping = mapped
	} else if err := mapping.Validate(); err != nil {
		return nil, rep, &FormatError{Reason: "column layout", Err: err}
	}

	var rows []Row
	process := func(lineNo int, text string) bool {
		if pol.Limit > 0 && rep.Rows >= pol.Limit {
			return false
		}
		if text == "" {
			return true
		}
		rep.Rows++
		if imp.Progress != nil && rep.Rows%progressEvery == 0 {
			imp.Progress(rep.Rows)
		}
		rec, skip := imp.Normalizer.Normalize(mapping.Extract(SplitDelimited(text, delim)))
		if skip != "" {
			rep.Skipped++
			return true
		}
		rows = append(rows, Row{Line: lineNo, Rec: *rec})
		return true
	}

	if !hasHeader && !process(line, first) {
		return rows, rep, nil
	}
	for sc.Scan() {
		line++
		if !process(line, strings.TrimSuffix(sc.Text(), "\r")) {
			return rows, rep, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, rep, fmt.Errorf("read source: %w", err)
	}
	return rows, rep, nil
}

// collectDump reads a whole SQL dump, extracts its INSERT tuples and
// normalizes them through the positional layout. Legacy dumps are at most
// tens of megabytes, so buffering the decoded text is fine.
func (imp *Importer) collectDump(r io.Reader, pol Policy) ([]Row, Report, error) {
	var rep Report

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, rep, fmt.Errorf("read source: %w", err)
	}
	if len(data) == 0 {
		return nil, rep, nil
	}

	enc := imp.Encoding
	if enc == "" {
		sample := data
		if len(sample) > detectSample {
			sample = sample[:detectSample]
		}
		detected, err := DetectEncoding(sample)
		if err != nil {
			return nil, rep, err
		}
		enc = detected
	}
	text, err := DecodeBytes(data, enc)
	if err != nil {
		return nil, rep, &FormatError{Reason: "decode dump", Err: err}
	}

	layout := imp.DumpLayout
	if layout == nil {
		layout = DefaultDumpLayout()
	}
	if err := layout.Validate(); err != nil {
		return nil, rep, &FormatError{Reason: "dump layout", Err: err}
	}

	tuples := ScanInsertStatements(text, imp.DumpTable)
	if len(tuples) == 0 {
		return nil, rep, &FormatError{Reason: "no insert statements found"}
	}

	rows := make([]Row, 0, len(tuples))
	for i, tuple := range tuples {
		if pol.Limit > 0 && rep.Rows >= pol.Limit {
			break
		}
		rep.Rows++
		if imp.Progress != nil && rep.Rows%progressEvery == 0 {
			imp.Progress(rep.Rows)
		}
		rec, skip := imp.Normalizer.Normalize(layout.Extract(tuple))
		if skip != "" {
			rep.Skipped++
			continue
		}
		rows = append(rows, Row{Line: i + 1, Rec: *rec})
	}
	return rows, rep, nil
}
