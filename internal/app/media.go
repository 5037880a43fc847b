package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ibeckermayer/reply4me/internal/quotes"
)

var mediaExts = []string{".png", ".jpg", ".jpeg", ".gif"}

// DirMedia attaches a pre-rendered image per category from Dir, looked up
// as <category>.<ext> with the category lower-cased. A missing file means no
// media.
type DirMedia struct {
	Dir string
}

func (m DirMedia) Render(ctx context.Context, q quotes.Quote, cat quotes.Category) (string, error) {
	if m.Dir == "" || cat.Name == "" {
		return "", nil
	}
	base := strings.ToLower(cat.Name)
	for _, ext := range mediaExts {
		path := filepath.Join(m.Dir, base+ext)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}
