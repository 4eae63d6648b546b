package main

import (
	"context"
	"flag"
	"log"
	"time"

	"postcardhub/internal/ingest"
	"postcardhub/internal/media"
	"postcardhub/internal/postcard"
	"postcardhub/pkg/database"
)

func main() {
	var (
		from     = flag.String("from", "", "mirror base URL, e.g. http://mirror.example.org:9000")
		dest     = flag.String("dest", "media", "local media tree root")
		attempts = flag.Int("attempts", 3, "download attempts per file")
		wait     = flag.Duration("wait", 5*time.Second, "wait between attempts")
	)
	flag.Parse()

	if *from == "" {
		flag.Usage()
		log.Fatal("-from is required")
	}

	ctx := context.Background()

	s := &media.Syncer{
		Source:  media.NewHTTPSource(*from),
		DestDir: *dest,
		Retry:   ingest.RetryPolicy{Attempts: *attempts, Wait: *wait},
	}

	reports, err := s.Sync(ctx)
	if err != nil {
		log.Fatalf("sync failed: %v", err)
	}

	var downloaded, skipped, failed int
	for _, rep := range reports {
		downloaded += rep.Downloaded
		skipped += rep.Skipped
		failed += rep.Failed
	}
	log.Printf("[sync-media] total: %d downloaded, %d skipped, %d failed", downloaded, skipped, failed)

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	updated, err := media.UpdateFlags(ctx, postcard.NewRepo(db), *dest)
	if err != nil {
		log.Fatalf("update media flags failed: %v", err)
	}
	log.Printf("✅ synced from %s; media flags updated on %d cards", s.Source.Name(), updated)
}
