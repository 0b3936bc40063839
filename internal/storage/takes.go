package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/utils/filesystem"
)

const timestampLayout = "20060102-150405.000"

// GetTakeFilePath returns where a take rendered from sourcePath is written:
// <source dir>/<takes dir>/<stem>_<timestamp>_<suffix>.wav
func GetTakeFilePath(sourcePath, suffix string, at time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.wav",
		filesystem.CleanPath(filesystem.Stem(sourcePath)),
		at.Format(timestampLayout),
		filesystem.CleanPath(suffix),
	)
	return filepath.Join(filepath.Dir(sourcePath), config.TakesDirName, name)
}

// SaveTake writes buf next to sourcePath and returns the new file's path.
func SaveTake(sourcePath, suffix string, buf *audio.Buffer) (string, error) {
	path := GetTakeFilePath(sourcePath, suffix, time.Now())
	if err := audio.WriteFile(path, buf); err != nil {
		return "", fmt.Errorf("failed to save take %s: %w", path, err)
	}
	return path, nil
}
