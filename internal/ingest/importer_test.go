package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"postcardhub/pkg/models"
)

func TestDetectSourceFormat(t *testing.T) {
	tests := []struct {
		name string
		want SourceFormat
	}{
		{"backup.sql", FormatSQLDump},
		{"BACKUP.SQL", FormatSQLDump},
		{"cartes.csv", FormatDelimited},
		{"cartes.txt", FormatDelimited},
		{"noextension", FormatDelimited},
	}
	for _, tt := range tests {
		if got := DetectSourceFormat(tt.name); got != tt.want {
			t.Errorf("DetectSourceFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImportFromEndToEnd(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.csv",
		Data: []byte("number;title;mots_cles;rarete\n" +
			"1;Bateau;seine,bateau;rare\n" +
			"000001;Bateau modifié;seine;commune\n"),
	}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{UpdateExisting: true})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 2 || rep.Created != 1 || rep.Updated != 1 || rep.Skipped != 0 || rep.ErrorCount != 0 {
		t.Errorf("report = %+v", rep)
	}
	if rep.StoreTotal != 1 {
		t.Errorf("StoreTotal = %d, want 1", rep.StoreTotal)
	}
	if len(store.records) != 1 {
		t.Fatalf("store has %d records, want 1", len(store.records))
	}
	rec := store.records["000001"]
	if rec.Title != "Bateau modifié" {
		t.Errorf("Title = %q, want %q", rec.Title, "Bateau modifié")
	}
	if rec.Rarity != models.RarityCommon {
		t.Errorf("Rarity = %q, want %q", rec.Rarity, models.RarityCommon)
	}
	if rec.Keywords != "seine" {
		t.Errorf("Keywords = %q, want %q", rec.Keywords, "seine")
	}
}

func TestImportFromNoHeaderMapsPositionally(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.csv",
		Data:       []byte("1;Vue du port;vieux port\n2;Moulin;moulin a vent\n"),
	}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Created != 2 {
		t.Errorf("report = %+v", rep)
	}
	rec := store.records["000001"]
	if rec.Title != "Vue du port" {
		t.Errorf("Title = %q", rec.Title)
	}
	// Position 2 is the description slot, not keywords.
	if rec.Description != "vieux port" || rec.Keywords != "" {
		t.Errorf("Description = %q, Keywords = %q", rec.Description, rec.Keywords)
	}
}

func TestImportFromSkipsRowsWithoutNumber(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.csv",
		Data:       []byte("number;title\n;Sans numero\n3;Avec numero\n"),
	}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 2 || rep.Skipped != 1 || rep.Created != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestImportFromBlankLinesAreNotRows(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.csv",
		Data:       []byte("number;title\n1;Vue\n\n\n2;Pont\n"),
	}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 2 || rep.Created != 2 || rep.Skipped != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestImportFromLimit(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.csv",
		Data:       []byte("number;title\n1;a\n2;b\n3;c\n"),
	}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{Limit: 2})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 2 || rep.Created != 2 {
		t.Errorf("report = %+v", rep)
	}
	if _, ok := store.records["000003"]; ok {
		t.Error("row past the limit was imported")
	}
}

func TestImportFromLatin1(t *testing.T) {
	data := []byte("numero;titre\n1;Caf")
	data = append(data, 0xE9, '\n')
	src := BytesSource{SourceName: "cartes.csv", Data: data}
	store := newMemStore()
	imp := &Importer{Store: store}

	if _, err := imp.ImportFrom(context.Background(), src, Policy{}); err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if got := store.records["000001"].Title; got != "Café" {
		t.Errorf("Title = %q, want %q", got, "Café")
	}
}

func TestImportFromUTF8BOM(t *testing.T) {
	data := append(append([]byte{}, utf8BOM...), []byte("number;title\n1;Vue\n")...)
	src := BytesSource{SourceName: "cartes.csv", Data: data}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Created != 1 {
		t.Errorf("report = %+v", rep)
	}
	if _, ok := store.records["000001"]; !ok {
		t.Errorf("records = %v, want 000001", store.records)
	}
}

func TestImportFromForcedDelimiterAndColumns(t *testing.T) {
	src := BytesSource{
		SourceName: "cartes.txt",
		Data:       []byte("Vue de nuit|1\nPont|2\n"),
	}
	store := newMemStore()
	imp := &Importer{
		Store:     store,
		Delimiter: '|',
		NoHeader:  true,
		Columns:   ColumnMapping{FieldTitle: 0, FieldNumber: 1},
	}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Created != 2 {
		t.Errorf("report = %+v", rep)
	}
	if got := store.records["000001"].Title; got != "Vue de nuit" {
		t.Errorf("Title = %q", got)
	}
}

func TestImportFromRejectsBadColumnLayout(t *testing.T) {
	src := BytesSource{SourceName: "cartes.csv", Data: []byte("a;b\n")}
	imp := &Importer{
		Store:   newMemStore(),
		Columns: ColumnMapping{FieldKeywords: 0},
	}
	_, err := imp.ImportFrom(context.Background(), src, Policy{})
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %v, want FormatError", err)
	}
	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Errorf("error = %v, want to wrap MissingRequiredFieldError", err)
	}
}

func TestImportFromEmptySource(t *testing.T) {
	store := newMemStore()
	imp := &Importer{Store: store}
	rep, err := imp.ImportFrom(context.Background(), BytesSource{SourceName: "cartes.csv"}, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 0 || rep.Created != 0 || rep.Skipped != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func dumpTuple(fields map[int]string) string {
	vals := make([]string, 42)
	for i := range vals {
		vals[i] = "NULL"
	}
	for i, v := range fields {
		vals[i] = v
	}
	return "(" + strings.Join(vals, ",") + ")"
}

func TestImportFromSQLDump(t *testing.T) {
	dump := "INSERT INTO cartes_postales VALUES " +
		dumpTuple(map[int]string{0: "1", 1: "'Vue du port'", 2: "'port,mer'", 17: "'rare'", 41: "'Belle vue du port.'"}) + "," +
		dumpTuple(map[int]string{0: "2", 1: "'Moulin'", 2: "'moulin'"}) + ";\n"
	src := BytesSource{SourceName: "backup.sql", Data: []byte(dump)}
	store := newMemStore()
	imp := &Importer{Store: store}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 2 || rep.Created != 2 {
		t.Errorf("report = %+v", rep)
	}
	rec := store.records["000001"]
	if rec.Title != "Vue du port" || rec.Keywords != "port,mer" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Rarity != models.RarityRare {
		t.Errorf("Rarity = %q, want %q", rec.Rarity, models.RarityRare)
	}
	if rec.Description != "Belle vue du port." {
		t.Errorf("Description = %q", rec.Description)
	}
	if got := store.records["000002"].Rarity; got != models.RarityCommon {
		t.Errorf("missing rarity defaulted to %q, want %q", got, models.RarityCommon)
	}
}

func TestImportFromSQLDumpCustomLayout(t *testing.T) {
	dump := "INSERT INTO cards VALUES (1, 'rare', 'Vue');"
	src := BytesSource{SourceName: "cards.sql", Data: []byte(dump)}
	store := newMemStore()
	imp := &Importer{
		Store:      store,
		DumpLayout: ColumnMapping{FieldNumber: 0, FieldRarity: 1, FieldTitle: 2},
	}

	if _, err := imp.ImportFrom(context.Background(), src, Policy{}); err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	rec := store.records["000001"]
	if rec.Title != "Vue" || rec.Rarity != models.RarityRare {
		t.Errorf("record = %+v", rec)
	}
}

func TestImportFromSQLDumpTableFilter(t *testing.T) {
	dump := "INSERT INTO users VALUES (1, 'admin');\n" +
		"INSERT INTO cartes_postales VALUES (5, 'Quai');\n"
	src := BytesSource{SourceName: "full.sql", Data: []byte(dump)}
	store := newMemStore()
	imp := &Importer{
		Store:      store,
		DumpTable:  "cartes_postales",
		DumpLayout: ColumnMapping{FieldNumber: 0, FieldTitle: 1},
	}

	rep, err := imp.ImportFrom(context.Background(), src, Policy{})
	if err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if rep.Rows != 1 || rep.Created != 1 {
		t.Errorf("report = %+v", rep)
	}
	if _, ok := store.records["000005"]; !ok {
		t.Errorf("records = %v, want 000005", store.records)
	}
}

func TestImportFromSQLDumpWithoutInserts(t *testing.T) {
	src := BytesSource{SourceName: "schema.sql", Data: []byte("CREATE TABLE cartes_postales (id int);\n")}
	imp := &Importer{Store: newMemStore()}
	_, err := imp.ImportFrom(context.Background(), src, Policy{})
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Errorf("error = %v, want FormatError", err)
	}
}

func TestImportFromForcedFormat(t *testing.T) {
	// A .txt file holding a dump still parses as SQL when forced.
	src := BytesSource{
		SourceName: "export.txt",
		Data:       []byte("INSERT INTO cartes_postales VALUES (9, 'Place');"),
	}
	store := newMemStore()
	imp := &Importer{
		Store:      store,
		Format:     FormatSQLDump,
		DumpLayout: ColumnMapping{FieldNumber: 0, FieldTitle: 1},
	}
	if _, err := imp.ImportFrom(context.Background(), src, Policy{}); err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if _, ok := store.records["000009"]; !ok {
		t.Errorf("records = %v, want 000009", store.records)
	}
}

func TestImportFromProgressCallback(t *testing.T) {
	var lines []string
	lines = append(lines, "number;title")
	for i := 1; i <= 1200; i++ {
		lines = append(lines, fmt.Sprintf("%d;Vue %d", i, i))
	}
	src := BytesSource{SourceName: "cartes.csv", Data: []byte(strings.Join(lines, "\n"))}

	var calls []int
	imp := &Importer{Store: newMemStore(), Progress: func(rows int) { calls = append(calls, rows) }}
	if _, err := imp.ImportFrom(context.Background(), src, Policy{}); err != nil {
		t.Fatalf("ImportFrom error: %v", err)
	}
	if len(calls) != 2 || calls[0] != 500 || calls[1] != 1000 {
		t.Errorf("progress calls = %v, want [500 1000]", calls)
	}
}
