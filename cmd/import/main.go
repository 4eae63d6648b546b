package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"postcardhub/internal/ingest"
	"postcardhub/internal/postcard"
	"postcardhub/pkg/database"
)

func main() {
	var (
		src       = flag.String("src", "", "source path or http(s) URL")
		format    = flag.String("format", "auto", "source format: auto, csv or sql")
		update    = flag.Bool("update", false, "overwrite records that already exist")
		dryRun    = flag.Bool("dry-run", false, "compute the full report, then roll back")
		clear     = flag.Bool("clear", false, "delete every card before importing (needs -yes)")
		yes       = flag.Bool("yes", false, "confirm destructive operations")
		limit     = flag.Int("limit", 0, "stop after this many source rows (0 = all)")
		strict    = flag.Bool("strict", false, "roll back when any row fails")
		workers   = flag.Int("workers", 1, "parallel appliers, partitioned by card number")
		delimiter = flag.String("delimiter", "", "field delimiter override, e.g. ';'")
		noHeader  = flag.Bool("no-header", false, "treat the first row as data")
		idWidth   = flag.Int("id-width", 0, "zero-pad card numbers to this width")
		table     = flag.String("table", "", "restrict SQL dump parsing to one table")
		maxErrors = flag.Int("errors", ingest.DefaultMaxErrors, "how many row errors to keep in the report")

		colNumber   = flag.Int("col-number", -1, "column index of the card number")
		colTitle    = flag.Int("col-title", -1, "column index of the title")
		colDesc     = flag.Int("col-desc", -1, "column index of the description")
		colKeywords = flag.Int("col-keywords", -1, "column index of the keywords")
		colRarity   = flag.Int("col-rarity", -1, "column index of the rarity")
	)
	flag.Parse()

	// optional .env, same as the server
	_ = godotenv.Load()

	if *src == "" {
		flag.Usage()
		log.Fatal("-src is required")
	}
	if *clear && !*yes {
		log.Fatal("-clear wipes the whole catalog; run again with -yes to confirm")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	imp := &ingest.Importer{
		Store:      postcard.NewCatalogStore(db),
		Format:     ingest.SourceFormat(*format),
		NoHeader:   *noHeader,
		DumpTable:  *table,
		Normalizer: ingest.Normalizer{NumberWidth: *idWidth},
		MaxErrors:  *maxErrors,
		Progress: func(rows int) {
			log.Printf("[import] %d rows read", rows)
		},
	}
	if *delimiter != "" {
		imp.Delimiter = []rune(*delimiter)[0]
	}
	if cols := explicitColumns(*colNumber, *colTitle, *colDesc, *colKeywords, *colRarity); len(cols) > 0 {
		imp.Columns = cols
	}

	var source ingest.Source
	if strings.HasPrefix(*src, "http://") || strings.HasPrefix(*src, "https://") {
		source = &ingest.HTTPSource{URL: *src}
	} else {
		source = ingest.FileSource{Path: *src}
	}

	pol := ingest.Policy{
		UpdateExisting: *update,
		ClearFirst:     *clear,
		DryRun:         *dryRun,
		Strict:         *strict,
		Limit:          *limit,
		Workers:        *workers,
	}

	started := time.Now()
	rep, err := imp.ImportFrom(ctx, source, pol)
	if err != nil {
		log.Fatalf("import of %s failed: %v", source.Name(), err)
	}

	printReport(source.Name(), rep, time.Since(started))

	if !rep.Applied && !rep.DryRun {
		os.Exit(1)
	}
}

func explicitColumns(number, title, desc, keywords, rarity int) ingest.ColumnMapping {
	m := ingest.ColumnMapping{}
	set := func(f ingest.Field, idx int) {
		if idx >= 0 {
			m[f] = idx
		}
	}
	set(ingest.FieldNumber, number)
	set(ingest.FieldTitle, title)
	set(ingest.FieldDescription, desc)
	set(ingest.FieldKeywords, keywords)
	set(ingest.FieldRarity, rarity)
	return m
}

func printReport(name string, rep *ingest.Report, took time.Duration) {
	log.Printf("[import] %s: %d source rows in %s", name, rep.Rows, took.Round(time.Millisecond))
	log.Printf("[import] created %d, updated %d, skipped %d, errors %d",
		rep.Created, rep.Updated, rep.Skipped, rep.ErrorCount)
	for _, msg := range rep.FirstErrors {
		log.Printf("[import]   %s", msg)
	}
	if rep.ErrorCount > len(rep.FirstErrors) {
		log.Printf("[import]   ... and %d more", rep.ErrorCount-len(rep.FirstErrors))
	}

	switch {
	case rep.DryRun:
		log.Printf("[import] dry run, nothing applied; the catalog would hold %d cards", rep.StoreTotal)
	case !rep.Applied:
		log.Printf("[import] rolled back after row errors; the catalog still holds %d cards", rep.StoreTotal)
	default:
		log.Printf("✅ applied; the catalog holds %d cards", rep.StoreTotal)
	}
}
