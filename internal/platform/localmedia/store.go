package localmedia

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// Store writes generated images under MEDIA_DIR. The front-end serves
// the directory statically; the manifest records relative paths.
type Store struct {
	log  *logger.Logger
	root string
}

func NewStore(baseLog *logger.Logger) (*Store, error) {
	root := envutil.Str("MEDIA_DIR", "./media")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{
		log:  baseLog.With("service", "LocalMediaStore"),
		root: root,
	}, nil
}

func (s *Store) Root() string { return s.root }

// SaveImage writes PNG bytes and returns the path relative to the media
// root. Name is sanitised to a flat filename.
func (s *Store) SaveImage(name string, data []byte) (string, error) {
	name = sanitize(name)
	if name == "" {
		return "", fmt.Errorf("empty image name")
	}
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	full := filepath.Join(s.root, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	return name, nil
}

func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
