// Package diag persists raw page markup when an expected extraction fails,
// so broken selectors can be repaired offline against the real page.
package diag

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Save writes markup under dir as "<prefix>_<safe-entity-name>.html" and
// returns the path. The entity name is sanitized for the filesystem.
func Save(dir, prefix, entity, markup string) (string, error) {
	safe := strings.NewReplacer(" ", "_", "/", "_").Replace(entity)
	path := filepath.Join(dir, prefix+"_"+safe+".html")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "diag: create capture dir")
	}
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		return "", eris.Wrap(err, "diag: write capture")
	}

	zap.L().Info("saved diagnostic capture", zap.String("path", path))
	return path, nil
}
