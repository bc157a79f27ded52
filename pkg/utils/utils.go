// Package utils provides source fetching and caching helpers for the dashboard.
package utils

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

// CacheFileName is the file a remote source is cached under. The label keeps
// sources that share a file name apart.
func CacheFileName(rawURL, label string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Path
	}
	name = path.Base(name)

	prefix := strings.ReplaceAll(strings.Trim(label, "[]"), " ", "_")
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// OpenSource opens a local file or a remote URL.
func OpenSource(log *slog.Logger, src, cacheDir, label string) (io.ReadCloser, error) {
	if src == "" {
		return nil, fmt.Errorf("%s no source configured", label)
	}
	if IsRemote(src) {
		return GetCachedReader(log, src, cacheDir, label)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetCachedReader returns a reader for the given URL. When cacheDir is not
// empty the file is downloaded once and served from disk afterwards.
func GetCachedReader(log *slog.Logger, rawURL, cacheDir, label string) (io.ReadCloser, error) {
	log = log.With("source", label)
	if cacheDir == "" {
		log.Info("streaming source", "url", rawURL)
		return fetch(rawURL)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	local := filepath.Join(cacheDir, CacheFileName(rawURL, label))
	if f, err := os.Open(local); err == nil {
		log.Info("using cached source", "path", local)
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	log.Info("downloading source", "url", rawURL)
	n, err := download(rawURL, local)
	if err != nil {
		return nil, err
	}
	log.Debug("source cached", "path", local, "bytes", n)
	f, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return f, nil
}

func fetch(rawURL string) (io.ReadCloser, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound
	}
	_ = resp.Body.Close()
	return nil, fmt.Errorf("bad status: %s", resp.Status)
}

// download writes rawURL to dst through a temporary file in the same
// directory, so a failed transfer never leaves a partial cache entry.
func download(rawURL, dst string) (int64, error) {
	body, err := fetch(rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
