package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"postcardhub/internal/media"
	"postcardhub/pkg/models"
)

func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dataPath = flag.String("data", "data/mirror.json", "snapshot JSON path")
		mediaDir = flag.String("media", "media", "media tree root")
	)
	flag.Parse()

	src := media.DirSource{Root: *mediaDir}

	http.HandleFunc("/cards", func(w http.ResponseWriter, r *http.Request) {
		b, err := os.ReadFile(*dataPath)
		if err != nil {
			http.Error(w, "cannot read snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
		// validate JSON so a bad file doesn't silently break replication
		var tmp any
		if err := json.Unmarshal(b, &tmp); err != nil {
			http.Error(w, "snapshot invalid JSON: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	// importable rendering of the same snapshot, for -src http://.../cards.csv
	http.HandleFunc("/cards.csv", func(w http.ResponseWriter, r *http.Request) {
		cards, err := loadSnapshot(*dataPath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := writeCSV(w, cards); err != nil {
			log.Printf("[mirror] csv render aborted: %v", err)
		}
	})

	http.HandleFunc("/media/manifest", func(w http.ResponseWriter, r *http.Request) {
		m, err := media.BuildManifest(r.Context(), src)
		if err != nil {
			http.Error(w, "cannot walk media tree: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m)
	})

	http.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/media/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || !knownFolder(parts[0]) {
			http.NotFound(w, r)
			return
		}
		folder, name := parts[0], parts[1]
		if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
			http.NotFound(w, r)
			return
		}

		body, err := src.Fetch(r.Context(), folder, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer body.Close()

		if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		io.Copy(w, body)
	})

	log.Printf("mirror-server listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func knownFolder(folder string) bool {
	for _, f := range media.Folders {
		if f == folder {
			return true
		}
	}
	return false
}

func loadSnapshot(path string) ([]models.Postcard, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot: %w", err)
	}
	var cards []models.Postcard
	if err := json.Unmarshal(b, &cards); err != nil {
		return nil, fmt.Errorf("snapshot invalid JSON: %w", err)
	}
	return cards, nil
}

func writeCSV(w io.Writer, cards []models.Postcard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"number", "title", "description", "keywords", "rarity", "views_count", "likes_count"}); err != nil {
		return err
	}
	for _, p := range cards {
		if err := cw.Write([]string{
			p.Number,
			flatten(p.Title),
			flatten(p.Description),
			flatten(p.Keywords),
			p.Rarity,
			strconv.Itoa(p.ViewsCount),
			strconv.Itoa(p.LikesCount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// flatten strips newlines; the import side reads line by line.
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
