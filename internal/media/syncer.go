package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"postcardhub/internal/ingest"
)

// FolderReport counts one folder's sync outcome.
type FolderReport struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Syncer downloads the files missing from DestDir, folder by folder.
// Existing files are never re-fetched.
type Syncer struct {
	Source  Source
	DestDir string
	Retry   ingest.RetryPolicy
}

func (s *Syncer) Sync(ctx context.Context) (map[string]FolderReport, error) {
	retry := s.Retry
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.Wait <= 0 {
		retry.Wait = 5 * time.Second
	}

	reports := make(map[string]FolderReport, len(Folders))
	for _, folder := range Folders {
		names, err := s.Source.List(ctx, folder)
		if err != nil {
			return reports, fmt.Errorf("list %s: %w", folder, err)
		}

		dir := filepath.Join(s.DestDir, folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return reports, fmt.Errorf("mkdir %s: %w", dir, err)
		}

		var rep FolderReport
		for _, name := range names {
			if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
				log.Printf("[media] %s: skipping suspicious name %q", folder, name)
				rep.Failed++
				continue
			}

			dest := filepath.Join(dir, name)
			if _, err := os.Stat(dest); err == nil {
				rep.Skipped++
				continue
			}

			if err := s.download(ctx, folder, name, dest, retry); err != nil {
				log.Printf("[media] %s/%s: %v", folder, name, err)
				rep.Failed++
				continue
			}
			rep.Downloaded++
		}

		log.Printf("[media] %s: %d downloaded, %d skipped, %d failed",
			folder, rep.Downloaded, rep.Skipped, rep.Failed)
		reports[folder] = rep
	}
	return reports, nil
}

func (s *Syncer) download(ctx context.Context, folder, name, dest string, retry ingest.RetryPolicy) error {
	var lastErr error
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(retry.Wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = s.fetchToFile(ctx, folder, name, dest)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", retry.Attempts, lastErr)
}

func (s *Syncer) fetchToFile(ctx context.Context, folder, name, dest string) error {
	body, err := s.Source.Fetch(ctx, folder, name)
	if err != nil {
		return err
	}
	defer body.Close()

	// partial downloads must not land under the final name, or the
	// next run would skip them
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+name+".part*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
