// Package dirtree provides an in-memory index of the files beneath the
// configured image roots, so that catalog-logged filenames can be resolved to
// filesystem paths without touching disk.
package dirtree

import (
	"fmt"
	"strings"
	"time"
)

// fitsSuffixes are the filename suffixes recognized as FITS files.
var fitsSuffixes = []string{".fits", ".fit", ".FIT", ".FITS", ".fts"}

// Tree is an immutable snapshot of the configured image roots. Readers always
// observe a complete tree; partially built trees are never published.
type Tree struct {
	// fileMap maps filename to all matching absolute paths, ordered by root
	// priority and then lexicographically within a root.
	fileMap map[string][]string
	// dirMap maps directory path to its direct children.
	dirMap map[string][]string
	// createdAt is the construction time.
	createdAt time.Time
	// roots are the scanned root directories.
	roots []string
}

// Stats describes a directory tree snapshot.
type Stats struct {
	// TotalFiles is the total number of indexed file paths.
	TotalFiles int `json:"total_files"`
	// UniqueFilenames is the number of distinct filenames.
	UniqueFilenames int `json:"unique_filenames"`
	// TotalDirectories is the number of indexed directories.
	TotalDirectories int `json:"total_directories"`
	// AgeSeconds is the snapshot age in seconds.
	AgeSeconds int64 `json:"age_seconds"`
	// Roots are the scanned root directories.
	Roots []string `json:"roots"`
}

// FindFile returns all indexed paths for the specified filename, or nil if
// the filename is unknown.
func (t *Tree) FindFile(filename string) []string {
	return t.fileMap[filename]
}

// FindFileFirst returns the first indexed path for the specified filename.
// Callers needing a strict existence guarantee must verify the path
// themselves, since the snapshot may be stale.
func (t *Tree) FindFileFirst(filename string) (string, bool) {
	if paths := t.fileMap[filename]; len(paths) > 0 {
		return paths[0], true
	}
	return "", false
}

// FindFilesMatching returns all paths whose filename satisfies the specified
// predicate.
func (t *Tree) FindFilesMatching(predicate func(string) bool) []string {
	var results []string
	for filename, paths := range t.fileMap {
		if predicate(filename) {
			results = append(results, paths...)
		}
	}
	return results
}

// FITSFiles returns all indexed FITS file paths.
func (t *Tree) FITSFiles() []string {
	return t.FindFilesMatching(func(filename string) bool {
		for _, suffix := range fitsSuffixes {
			if strings.HasSuffix(filename, suffix) {
				return true
			}
		}
		return false
	})
}

// DirectoryContents returns the direct children of the specified directory,
// or nil if the directory was not scanned.
func (t *Tree) DirectoryContents(directory string) []string {
	return t.dirMap[directory]
}

// Age returns the age of the snapshot.
func (t *Tree) Age() time.Duration {
	return time.Since(t.createdAt)
}

// OlderThan indicates whether or not the snapshot is older than the specified
// duration.
func (t *Tree) OlderThan(maxAge time.Duration) bool {
	return t.Age() > maxAge
}

// Stats computes statistics for the snapshot.
func (t *Tree) Stats() Stats {
	totalFiles := 0
	for _, paths := range t.fileMap {
		totalFiles += len(paths)
	}
	return Stats{
		TotalFiles:       totalFiles,
		UniqueFilenames:  len(t.fileMap),
		TotalDirectories: len(t.dirMap),
		AgeSeconds:       int64(t.Age().Seconds()),
		Roots:            t.roots,
	}
}

// FormatAge renders the snapshot age compactly for logs.
func (s Stats) FormatAge() string {
	seconds := s.AgeSeconds
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	} else if seconds < 3600 {
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh%dm", seconds/3600, (seconds%3600)/60)
}
