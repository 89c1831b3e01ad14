package web

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
)

//go:embed static
var embedded embed.FS

// ErrAssetNotFound is returned when a route's file does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// Assets serves static files from a file system.
type Assets struct {
	fsys fs.FS
}

// EmbeddedAssets returns the assets compiled into the binary.
func EmbeddedAssets() *Assets {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(err) // static is a literal directory in this package
	}
	return &Assets{fsys: sub}
}

// DirAssets serves assets from dir on disk.
func DirAssets(dir string) *Assets {
	return &Assets{fsys: os.DirFS(dir)}
}

// NewAssets serves assets from dir, or the embedded assets when dir is empty.
func NewAssets(dir string) *Assets {
	if dir == "" {
		return EmbeddedAssets()
	}
	return DirAssets(dir)
}

// Read returns the file bytes and content type for name.
func (a *Assets) Read(name string) ([]byte, string, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")

	data, err := fs.ReadFile(a.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil, "", fmt.Errorf("read asset %s: %w", name, err)
	}

	return data, ContentType(name), nil
}

// Exists reports whether name can be read.
func (a *Assets) Exists(name string) bool {
	_, _, err := a.Read(name)
	return err == nil
}

// ContentType picks a content type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
