package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"postcardhub/internal/postcard"
	"postcardhub/pkg/database"
	"postcardhub/pkg/models"
)

func main() {
	out := flag.String("out", "data/cards.csv", "output CSV path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	cards, err := postcard.NewRepo(db).ListAll(ctx)
	if err != nil {
		log.Fatalf("list cards failed: %v", err)
	}

	if err := writeCards(*out, cards); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	log.Printf("✅ exported %d cards to %s", len(cards), *out)
}

func writeCards(outPath string, cards []models.Postcard) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	// the legacy export header, still consumed by the site tooling
	if err := w.Write([]string{"number", "title", "description", "keywords", "rarity", "views_count", "likes_count"}); err != nil {
		return err
	}

	for _, p := range cards {
		if err := w.Write([]string{
			p.Number,
			p.Title,
			p.Description,
			p.Keywords,
			p.Rarity,
			strconv.Itoa(p.ViewsCount),
			strconv.Itoa(p.LikesCount),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
