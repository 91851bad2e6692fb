package proofarchive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSSink stores archived objects below a root directory.
type FSSink struct {
	root string
}

// NewFSSink returns a sink rooted at root, creating it if needed.
func NewFSSink(root string) (*FSSink, error) {
	if root == "" {
		return nil, fmt.Errorf("archive directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSSink{root: root}, nil
}

// sanitizeKey forbids keys escaping the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return filepath.Clean(filepath.FromSlash(key)), nil
}

// Put writes body to root/key. Existing objects are never overwritten.
func (s *FSSink) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dest, nil
}
