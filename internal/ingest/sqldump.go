package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

var insertHeadRe = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+`?([A-Za-z0-9_]+)`?\\s*(?:\\([^)]*\\)\\s*)?VALUES\\s*")

// ScanInsertStatements extracts the value tuples of every INSERT statement
// in a SQL dump, each tuple already split into field values. When table is
// non-empty only statements targeting that table are read.
//
// The end of each statement is found by the tuple scanner itself rather
// than by searching for the next semicolon, so semicolons inside string
// literals cannot truncate a statement.
func ScanInsertStatements(dump, table string) [][]string {
	var rows [][]string
	end := 0
	for _, m := range insertHeadRe.FindAllStringSubmatchIndex(dump, -1) {
		// Skip matches inside the VALUES body of an earlier statement,
		// "INSERT INTO" can appear as literal text in a description.
		if m[0] < end {
			continue
		}
		tuples, n := scanTuples(dump[m[1]:])
		end = m[1] + n
		name := dump[m[2]:m[3]]
		if table != "" && !strings.EqualFold(name, table) {
			continue
		}
		rows = append(rows, tuples...)
	}
	return rows
}

// ScanTuples reads the parenthesised tuples of one VALUES body, up to the
// statement's terminating semicolon.
//
// String literals may be single or double quoted; inside them a backslash
// escapes the next character and parentheses, commas and semicolons are
// literal text. Only commas at parenthesis depth 1 separate fields, so
// nested calls like POINT(1,2) stay intact. An unquoted NULL becomes the
// empty string; a quoted 'NULL' is kept as text.
func ScanTuples(body string) [][]string {
	rows, _ := scanTuples(body)
	return rows
}

// scanTuples also reports how many bytes of body the statement spans.
func scanTuples(body string) ([][]string, int) {
	var (
		rows    [][]string
		row     []string
		buf     strings.Builder
		quote   rune
		inStr   bool
		escaped bool
		quoted  bool
		depth   int
	)
	flush := func() {
		row = append(row, finishTupleValue(buf.String(), quoted))
		buf.Reset()
		quoted = false
	}
	for i, r := range body {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case inStr && r == '\\':
			escaped = true
		case inStr && r == quote:
			inStr = false
		case inStr:
			buf.WriteRune(r)
		case r == '\'' || r == '"':
			inStr = true
			quote = r
			quoted = true
		case r == '(':
			depth++
			if depth > 1 {
				buf.WriteRune(r)
			}
		case r == ')':
			if depth > 1 {
				buf.WriteRune(r)
				depth--
				break
			}
			if depth == 1 {
				flush()
				rows = append(rows, row)
				row = nil
				depth = 0
			}
		case depth == 1 && r == ',':
			flush()
		case depth == 0:
			if r == ';' {
				return rows, i + 1
			}
		default:
			buf.WriteRune(r)
		}
	}
	return rows, len(body)
}

func finishTupleValue(s string, quoted bool) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if !quoted && strings.EqualFold(s, "NULL") {
		return ""
	}
	return s
}

// DefaultDumpLayout positions fields the way the historical cartes_postales
// table lays them out: id, label and mots_clefs lead the tuple, rarete sits
// at column 17 and the description at column 41.
func DefaultDumpLayout() ColumnMapping {
	return ColumnMapping{
		FieldNumber:      0,
		FieldTitle:       1,
		FieldKeywords:    2,
		FieldRarity:      17,
		FieldDescription: 41,
	}
}
