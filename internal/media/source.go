package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Folders of the legacy media tree: one folder per postcard image size,
// plus the animation clips.
var Folders = []string{"Vignette", "Grande", "Dos", "Zoom", "animated_cp"}

// VignetteFolder is the primary-image indicator: a card has images when
// its vignette exists.
const VignetteFolder = "Vignette"

// AnimationFolder holds the mp4/webm clips.
const AnimationFolder = "animated_cp"

// Source lists and serves the files of one media tree.
type Source interface {
	Name() string
	List(ctx context.Context, folder string) ([]string, error)
	Fetch(ctx context.Context, folder, name string) (io.ReadCloser, error)
}

// Manifest is the wire format of a mirror's /media/manifest endpoint.
type Manifest struct {
	Folders map[string][]string `json:"folders"`
}

// HTTPSource reads a mirror server's media tree. The manifest endpoint
// lists each folder's files; individual files come from
// /media/<folder>/<name>.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client

	mu       sync.Mutex
	manifest *Manifest
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Name() string {
	if u, err := url.Parse(s.BaseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return s.BaseURL
}

func (s *HTTPSource) List(ctx context.Context, folder string) ([]string, error) {
	m, err := s.loadManifest(ctx)
	if err != nil {
		return nil, err
	}
	return m.Folders[folder], nil
}

func (s *HTTPSource) loadManifest(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest != nil {
		return s.manifest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/media/manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	s.manifest = &m
	return s.manifest, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, folder, name string) (io.ReadCloser, error) {
	fileURL := s.BaseURL + "/media/" + url.PathEscape(folder) + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", folder, name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s/%s: status %d", folder, name, resp.StatusCode)
	}
	return resp.Body, nil
}

// DirSource serves a media tree from a local directory. The mirror server
// uses it to publish its tree, and tests use it as a stand-in remote.
type DirSource struct {
	Root string
}

func (s DirSource) Name() string { return s.Root }

func (s DirSource) List(ctx context.Context, folder string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, folder))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", folder, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s DirSource) Fetch(ctx context.Context, folder, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Root, folder, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", folder, name, err)
	}
	return f, nil
}

// BuildManifest walks a local tree into the manifest wire form.
func BuildManifest(ctx context.Context, src Source) (*Manifest, error) {
	m := &Manifest{Folders: make(map[string][]string)}
	for _, folder := range Folders {
		names, err := src.List(ctx, folder)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			m.Folders[folder] = names
		}
	}
	return m, nil
}
