package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// FileInfo is the metadata reported for a single file.
type FileInfo struct {
	Path     string
	Size     int64
	Modified time.Time
	IsDir    bool
}

// ListDirectory lists dir, directories first, then by name.
func ListDirectory(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Name:  item.Name(),
			Path:  filepath.Join(dir, item.Name()),
			IsDir: item.IsDir(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Stat returns size and modification time of path.
func Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat: %w", err)
	}
	return FileInfo{
		Path:     path,
		Size:     info.Size(),
		Modified: info.ModTime(),
		IsDir:    info.IsDir(),
	}, nil
}
