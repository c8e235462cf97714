package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps finished export workbooks on disk under BaseDir and
// hands out URLs under PublicPrefix. It is the default backend when no S3
// bucket is configured.
type LocalStorage struct {
	BaseDir      string
	PublicPrefix string
	// BaseURL, when set, makes GetURL return absolute links (scheme+host).
	BaseURL string
}

func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir %q: %w", baseDir, err)
	}
	return &LocalStorage{BaseDir: baseDir, PublicPrefix: publicPrefix, BaseURL: baseURL}, nil
}

// Save writes the workbook under a collision-proof name. The stored name is
// "<random-hex>_<original>"; the download handler strips the prefix back off
// for Content-Disposition, so the underscore separator is part of the
// contract. Writes go through a temp file plus rename so a crashed export
// never leaves a half-written workbook visible.
func (s *LocalStorage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	fileName = filepath.Base(fileName) // no path traversal via the export name

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("storage name nonce: %w", err)
	}
	stored := hex.EncodeToString(nonce) + "_" + fileName

	dst := filepath.Join(s.BaseDir, stored)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize export file: %w", err)
	}
	return stored, nil
}

// GetURL builds the download link for a stored name: absolute when BaseURL
// is configured, otherwise a path the public file route serves.
func (s *LocalStorage) GetURL(fileName string) string {
	prefix := s.PublicPrefix
	if prefix == "" {
		prefix = "/files"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if s.BaseURL == "" {
		return prefix + "/" + fileName
	}
	return strings.TrimSuffix(s.BaseURL, "/") + prefix + "/" + fileName
}

// CleanupOlderThan removes stored workbooks whose mtime is older than the
// cutoff. Exports are one-shot downloads; the cleanup ticker in main keeps
// the directory from growing without bound.
func (s *LocalStorage) CleanupOlderThan(d time.Duration) error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-d)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(s.BaseDir, e.Name()))
		}
	}
	return nil
}
