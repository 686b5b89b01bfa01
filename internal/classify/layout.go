package classify

import (
	"strings"

	"github.com/chmouel/t262export/internal/models"
)

// Layout holds the absolute synced directories of both clones.
type Layout struct {
	TargetDirectory string
	SourceDirectory string
}

// IsSourcePath reports whether path is anchored under the source directory.
func (l Layout) IsSourcePath(path string) bool {
	return under(path, l.SourceDirectory)
}

// Trim strips the source or target directory prefix, leaving a path with a leading slash.
func (l Layout) Trim(path string) string {
	if l.IsSourcePath(path) {
		return strings.TrimPrefix(path, l.SourceDirectory)
	}
	if under(path, l.TargetDirectory) {
		return strings.TrimPrefix(path, l.TargetDirectory)
	}
	return path
}

// Identity locates path under both directories. source supplies the rename target, if any.
func (l Layout) Identity(path string, source *models.DiffMap) models.FileIdentity {
	base := l.Trim(path)
	id := models.FileIdentity{
		BaseFilePath:     base,
		SourceFilePath:   l.SourceDirectory + base,
		TargetFilePath:   l.TargetDirectory + base,
		IsSourceFilePath: l.IsSourcePath(path),
	}
	if entry, ok := source.Get(id.SourceFilePath); ok && entry.RenamedTo != "" {
		id.RenamedFilePath = entry.RenamedTo
		id.RenamedBaseFilePath = l.Trim(entry.RenamedTo)
	}
	return id
}

func under(path, dir string) bool {
	if dir == "" {
		return false
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/")
}
