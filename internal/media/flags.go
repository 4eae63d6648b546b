package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"postcardhub/pkg/models"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

var animationExts = map[string]bool{
	".mp4": true, ".webm": true,
}

// FlagStore is the slice of the catalog repo the flag updater needs.
type FlagStore interface {
	ListAll(ctx context.Context) ([]models.Postcard, error)
	SetMediaFlags(ctx context.Context, number string, hasImages, hasAnimation bool) error
}

// TreeFlags holds which card numbers have media on disk.
type TreeFlags struct {
	Images     map[string]bool
	Animations map[string]bool
}

// ScanTree reads the synced media tree. The vignette decides has_images;
// animated_cp decides has_animation. File stems may carry _0, _1 style
// suffixes for multiple takes of one card.
func ScanTree(root string) (*TreeFlags, error) {
	tf := &TreeFlags{
		Images:     make(map[string]bool),
		Animations: make(map[string]bool),
	}

	scan := func(folder string, exts map[string]bool, into map[string]bool) error {
		entries, err := os.ReadDir(filepath.Join(root, folder))
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", folder, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if !exts[ext] {
				continue
			}
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if i := strings.IndexByte(stem, '_'); i >= 0 {
				stem = stem[:i]
			}
			if stem != "" {
				into[stem] = true
			}
		}
		return nil
	}

	if err := scan(VignetteFolder, imageExts, tf.Images); err != nil {
		return nil, err
	}
	if err := scan(AnimationFolder, animationExts, tf.Animations); err != nil {
		return nil, err
	}
	return tf, nil
}

// UpdateFlags walks every card and stores the flags the tree dictates,
// returning how many rows changed.
func UpdateFlags(ctx context.Context, store FlagStore, mediaRoot string) (int, error) {
	tf, err := ScanTree(mediaRoot)
	if err != nil {
		return 0, err
	}

	cards, err := store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}

	updated := 0
	for _, p := range cards {
		hasImages := tf.Images[p.Number]
		hasAnimation := tf.Animations[p.Number]
		if p.HasImages == hasImages && p.HasAnimation == hasAnimation {
			continue
		}
		if err := store.SetMediaFlags(ctx, p.Number, hasImages, hasAnimation); err != nil {
			return updated, fmt.Errorf("set flags for %s: %w", p.Number, err)
		}
		updated++
	}
	return updated, nil
}
