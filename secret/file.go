package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider resolves secrets from files under a base directory,
// typically a mounted secrets volume.
type FileProvider struct {
	base string
}

// NewFileProvider creates a file provider rooted at base. References
// are joined to base and may not escape it.
func NewFileProvider(base string) *FileProvider {
	if base != "" {
		base = filepath.Clean(base)
	}
	return &FileProvider{base: base}
}

// Name returns "file".
func (*FileProvider) Name() string { return "file" }

// Resolve reads the file at ref relative to the base directory and
// returns its contents with surrounding whitespace trimmed.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path, err := p.secretPath(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Close is a no-op.
func (*FileProvider) Close() error { return nil }

func (p *FileProvider) secretPath(ref string) (string, error) {
	if p.base == "" {
		return "", fmt.Errorf("file provider has no base directory")
	}
	path := filepath.Join(p.base, filepath.FromSlash(ref))
	if path != p.base && !strings.HasPrefix(path, p.base+string(filepath.Separator)) {
		return "", fmt.Errorf("secret reference %q escapes the base directory", ref)
	}
	return path, nil
}
