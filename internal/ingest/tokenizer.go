package ingest

import "strings"

// SplitDelimited splits one line of delimited text into field values.
//
// Both single and double quotes open a quoted region in which the delimiter
// is literal text. The quote characters themselves are not part of the
// value. Inside a quoted region a backslash escapes the next character;
// outside quotes a backslash is an ordinary character. Doubled quotes are
// not collapsed (the legacy exports escape with backslashes, never by
// doubling), so "it''s" round-trips as "its" with the quotes eaten, exactly
// as the old importer read it.
//
// An empty line yields no fields. A trailing delimiter yields a trailing
// empty field.
func SplitDelimited(line string, delim rune) []string {
	if line == "" {
		return nil
	}
	var (
		fields  []string
		buf     strings.Builder
		quote   rune
		inQuote bool
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case !inQuote && (r == '\'' || r == '"'):
			inQuote = true
			quote = r
		case inQuote && r == quote:
			inQuote = false
		case !inQuote && r == delim:
			fields = append(fields, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	fields = append(fields, buf.String())
	return fields
}
