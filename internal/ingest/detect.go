package ingest

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Candidate encodings, tried in order. The names follow the vocabulary of
// the legacy export scripts so operators can force one from the CLI.
const (
	EncodingUTF8BOM = "utf-8-sig"
	EncodingUTF8    = "utf-8"
	EncodingLatin1  = "latin-1"
	EncodingCP1252  = "cp1252"
	EncodingISO     = "iso-8859-1"
)

var encodingCandidates = []string{
	EncodingUTF8BOM,
	EncodingUTF8,
	EncodingLatin1,
	EncodingCP1252,
	EncodingISO,
}

// Candidate delimiters, in tie-break priority order.
var delimiterCandidates = []rune{';', ',', '\t', '|'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const detectSample = 4096

// Detection is the outcome of sniffing a delimited source.
type Detection struct {
	Encoding  string
	Delimiter rune
	HasHeader bool
	Columns   []string
}

// DetectEncoding returns the first candidate encoding that decodes the
// sample without loss. Latin-1 accepts every byte sequence, so in practice
// a source is never rejected here; the order only decides which decoding
// wins.
func DetectEncoding(sample []byte) (string, error) {
	for _, name := range encodingCandidates {
		if decodesAs(sample, name) {
			return name, nil
		}
	}
	return "", &FormatError{Reason: "no candidate encoding decodes the source"}
}

func decodesAs(sample []byte, name string) bool {
	switch name {
	case EncodingUTF8BOM:
		return bytes.HasPrefix(sample, utf8BOM) && validUTF8(sample[len(utf8BOM):])
	case EncodingUTF8:
		return validUTF8(sample)
	case EncodingLatin1, EncodingISO:
		return true
	case EncodingCP1252:
		// The charmap decoder never errors, it substitutes U+FFFD for the
		// five unassigned Windows-1252 bytes. Treat substitution as failure.
		out, err := charmap.Windows1252.NewDecoder().Bytes(sample)
		return err == nil && !bytes.ContainsRune(out, utf8.RuneError)
	default:
		return false
	}
}

// validUTF8 reports whether b is valid UTF-8, tolerating a final rune cut
// off by the sample boundary.
func validUTF8(b []byte) bool {
	for i := 0; i < utf8.UTFMax-1; i++ {
		if utf8.Valid(b) {
			return true
		}
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return false
		}
		b = b[:len(b)-1]
		if len(b) == 0 {
			return false
		}
	}
	return utf8.Valid(b)
}

// NewDecodingReader wraps r so that it yields UTF-8 text according to the
// named encoding. A leading byte order mark is consumed for utf-8-sig.
func NewDecodingReader(r io.Reader, encoding string) io.Reader {
	switch encoding {
	case EncodingUTF8BOM:
		return &bomSkipReader{r: r}
	case EncodingLatin1, EncodingISO:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	case EncodingCP1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return r
	}
}

// DecodeBytes converts a whole byte slice to UTF-8 text according to the
// named encoding.
func DecodeBytes(data []byte, encoding string) (string, error) {
	switch encoding {
	case EncodingUTF8BOM:
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	case EncodingLatin1, EncodingISO:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		return string(out), err
	case EncodingCP1252:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		return string(out), err
	default:
		return string(data), nil
	}
}

// bomSkipReader drops a UTF-8 byte order mark from the start of the stream.
type bomSkipReader struct {
	r       io.Reader
	checked bool
}

func (b *bomSkipReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, err
		}
		head = head[:n]
		if !bytes.Equal(head, utf8BOM) {
			b.r = io.MultiReader(bytes.NewReader(head), b.r)
		}
	}
	return b.r.Read(p)
}

// DetectDelimiter counts candidate delimiters in the first line and keeps
// the most frequent one. Ties, including the all-zero case of a single
// column file, resolve in candidate priority order.
func DetectDelimiter(line string) rune {
	best := delimiterCandidates[0]
	bestCount := strings.Count(line, string(best))
	for _, d := range delimiterCandidates[1:] {
		if c := strings.Count(line, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// Keywords whose presence in any first-row cell marks the row as a header.
// Deliberately shorter than the column synonym tables: bare "rare" or "no"
// would match rarity values and ordinary words in data rows.
var headerKeywords = []string{
	"number", "numero", "id",
	"title", "titre", "name", "nom",
	"description", "keywords", "mots",
	"rarity", "rarete",
}

// DetectHeader decides whether the first row is a header. Any cell that
// contains a known column keyword means header; otherwise a purely numeric
// first cell means data. A first row that is neither is assumed to be a
// header, which matches how the legacy exports are laid out.
func DetectHeader(cells []string) bool {
	for _, cell := range cells {
		c := strings.ToLower(strings.TrimSpace(cell))
		for _, kw := range headerKeywords {
			if strings.Contains(c, kw) {
				return true
			}
		}
	}
	if len(cells) > 0 {
		if _, err := strconv.Atoi(strings.TrimSpace(cells[0])); err == nil {
			return false
		}
	}
	return true
}

// Detect sniffs encoding, delimiter and header in one pass over a sample of
// the source. Columns is filled only when a header row was recognised.
func Detect(sample []byte) (Detection, error) {
	enc, err := DetectEncoding(sample)
	if err != nil {
		return Detection{}, err
	}
	text, err := DecodeBytes(sample, enc)
	if err != nil {
		return Detection{}, &FormatError{Reason: "decode sample", Err: err}
	}
	firstLine := text
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.TrimSuffix(firstLine, "\r")

	det := Detection{Encoding: enc, Delimiter: DetectDelimiter(firstLine)}
	cells := SplitDelimited(firstLine, det.Delimiter)
	if len(cells) > 0 && DetectHeader(cells) {
		det.HasHeader = true
		det.Columns = make([]string, len(cells))
		for i, c := range cells {
			det.Columns[i] = strings.TrimSpace(c)
		}
	}
	return det, nil
}
