// Package document loads local files for document asks.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"lexchat/internal/remote"
)

const (
	// DefaultMaxBytes caps uploads when Options leaves MaxBytes unset.
	DefaultMaxBytes int64 = 20 << 20
	sniffLen              = 512
)

var (
	ErrPathRequired    = errors.New("path is required")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrTooLarge        = errors.New("document is too large")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrEmptyDocument   = errors.New("document is empty")
)

var (
	defaultExtensions = []string{".pdf"}
	knownMIMETypes    = map[string]string{".pdf": "application/pdf"}
)

// Options constrains which files Load accepts.
type Options struct {
	// Root resolves relative paths. Empty means the working directory.
	Root       string
	MaxBytes   int64
	Extensions []string
}

// Document is a file ready to upload.
type Document struct {
	Name        string
	Path        string
	ContentType string
	Content     []byte
}

// File converts the document into an upload part.
func (d Document) File() remote.File {
	return remote.File{Name: d.Name, ContentType: d.ContentType, Data: d.Content}
}

// Load resolves path and reads it after size and type checks.
func Load(ctx context.Context, path string, opts Options) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	resolved, err := resolvePath(opts.Root, path)
	if err != nil {
		return Document{}, err
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	allowed := normalizeExtensions(opts.Extensions)
	if !slices.Contains(allowed, ext) {
		return Document{}, fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedType, filepath.Base(resolved), strings.Join(allowed, ", "))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%w: %s", ErrIsDirectory, resolved)
	}

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if info.Size() > limit {
		return Document{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, filepath.Base(resolved), info.Size(), limit)
	}

	file, err := os.Open(resolved)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", resolved, err)
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", resolved, err)
	}
	if int64(len(raw)) > limit {
		return Document{}, fmt.Errorf("%w: %s grew past %d bytes", ErrTooLarge, filepath.Base(resolved), limit)
	}
	if len(raw) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(resolved))
	}

	return Document{
		Name:        filepath.Base(resolved),
		Path:        resolved,
		ContentType: contentType(ext, raw),
		Content:     raw,
	}, nil
}

func resolvePath(root, inputPath string) (string, error) {
	rawPath := strings.TrimSpace(inputPath)
	if rawPath == "" {
		return "", ErrPathRequired
	}

	if rawPath == "~" || strings.HasPrefix(rawPath, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		rawPath = filepath.Join(home, strings.TrimPrefix(rawPath, "~"))
	}

	candidate := rawPath
	if !filepath.IsAbs(candidate) {
		base := strings.TrimSpace(root)
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("resolve working directory: %w", err)
			}
			base = cwd
		}
		candidate = filepath.Join(base, candidate)
	}

	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path %s: %w", rawPath, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", rawPath, err)
	}
	return filepath.Clean(resolved), nil
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return defaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return defaultExtensions
	}
	return out
}

func contentType(ext string, raw []byte) string {
	if byExt, ok := knownMIMETypes[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return http.DetectContentType(raw[:min(len(raw), sniffLen)])
}
