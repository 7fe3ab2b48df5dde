// Package assets serves the planet images compiled into the binary.
package assets

import (
	"embed"
	"io/fs"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pscheid92/planetpulse/internal/domain"
)

//go:embed images/*.jpg
var images embed.FS

type Store struct {
	fsys fs.FS
}

var _ domain.AssetStore = (*Store)(nil)

// NewStore returns a store over the embedded planet images.
func NewStore() *Store {
	sub, err := fs.Sub(images, "images")
	if err != nil {
		panic(err)
	}
	return &Store{fsys: sub}
}

// NewStoreFS returns a store over an arbitrary file system, keyed by file name.
func NewStoreFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

func (s *Store) Get(name string) ([]byte, bool) {
	if name == "" || path.Base(name) != name {
		return nil, false
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Names lists every available asset key.
func (s *Store) Names() []string {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// ContentType sniffs the media type of an asset.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
