package dirtree

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/fitsight-io/fitsight/pkg/logging"
)

// excludedBasenames are directory basenames that are never scanned:
// calibration frame folders and version-control or build directories.
var excludedBasenames = map[string]bool{
	"DARK":         true,
	"FLAT":         true,
	"BIAS":         true,
	".git":         true,
	"node_modules": true,
	"target":       true,
	".cache":       true,
}

// ProgressFunc receives scan telemetry at directory boundaries.
type ProgressFunc func(directoriesProcessed, filesScanned int, currentDirectory string)

// scanner accumulates the maps for a single root.
type scanner struct {
	// exclude are additional basename glob patterns to skip.
	exclude []string
	// logger is the scan logger.
	logger *logging.Logger
	// progress is the optional progress callback.
	progress ProgressFunc
	// fileMap and dirMap accumulate results for this root.
	fileMap map[string][]string
	dirMap  map[string][]string
	// directories and files count scanned entries.
	directories int
	files       int
}

// skip indicates whether or not a directory basename should be skipped.
func (s *scanner) skip(name string) bool {
	if excludedBasenames[name] {
		return true
	}
	for _, pattern := range s.exclude {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// scanDirectory recursively scans a directory, populating the maps. Entry
// errors are logged and skipped; they never abort the scan.
func (s *scanner) scanDirectory(directory string) {
	if s.skip(filepath.Base(directory)) {
		s.logger.Trace("Skipping directory: %s", directory)
		return
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		s.logger.Trace("Cannot read directory %s: %v", directory, err)
		return
	}

	s.directories++

	children := make([]string, 0, len(entries))
	var subdirectories []string
	for _, entry := range entries {
		path := filepath.Join(directory, entry.Name())
		children = append(children, path)
		if entry.IsDir() {
			subdirectories = append(subdirectories, path)
		} else {
			s.fileMap[entry.Name()] = append(s.fileMap[entry.Name()], path)
			s.files++
		}
	}
	s.dirMap[directory] = children

	// Report progress at the directory boundary.
	if s.progress != nil {
		s.progress(s.directories, s.files, directory)
	}

	// Recurse into subdirectories.
	for _, subdirectory := range subdirectories {
		s.scanDirectory(subdirectory)
	}
}

// Build constructs a directory tree snapshot by walking each of the
// specified roots. Roots are scanned concurrently; the merged filename lists
// preserve root priority order. The progress callback, if non-nil, is invoked
// at directory boundaries with cumulative counts across all roots.
func Build(roots []string, exclude []string, progress ProgressFunc, logger *logging.Logger) (*Tree, error) {
	logger.Infof("Building directory tree for %d root(s)", len(roots))
	start := time.Now()

	// Scan each root concurrently. Progress counts are merged under a lock so
	// that callback observers see monotonic totals.
	scanners := make([]*scanner, len(roots))
	var progressLock sync.Mutex
	var totalDirectories, totalFiles int
	var group errgroup.Group
	for i, root := range roots {
		i, root := i, root
		scanners[i] = &scanner{
			exclude: exclude,
			logger:  logger,
			fileMap: make(map[string][]string),
			dirMap:  make(map[string][]string),
		}
		var lastDirectories, lastFiles int
		scanners[i].progress = func(directories, files int, current string) {
			if progress == nil {
				return
			}
			progressLock.Lock()
			totalDirectories += directories - lastDirectories
			totalFiles += files - lastFiles
			lastDirectories, lastFiles = directories, files
			directoriesSnapshot, filesSnapshot := totalDirectories, totalFiles
			progressLock.Unlock()
			progress(directoriesSnapshot, filesSnapshot, current)
		}
		group.Go(func() error {
			absolute, err := filepath.Abs(root)
			if err != nil {
				logger.Warnf("unable to resolve root %s: %v", root, err)
				return nil
			}
			scanners[i].scanDirectory(absolute)
			return nil
		})
	}
	group.Wait()

	// Merge per-root results in root priority order.
	tree := &Tree{
		fileMap:   make(map[string][]string),
		dirMap:    make(map[string][]string),
		createdAt: time.Now(),
		roots:     roots,
	}
	for _, s := range scanners {
		for filename, paths := range s.fileMap {
			tree.fileMap[filename] = append(tree.fileMap[filename], paths...)
		}
		for directory, children := range s.dirMap {
			tree.dirMap[directory] = children
		}
	}

	// Keep per-filename path lists deterministic when a filename appears
	// multiple times under a single root.
	for _, paths := range tree.fileMap {
		if len(paths) > 1 {
			sortWithinRoots(paths, roots)
		}
	}

	stats := tree.Stats()
	logger.Infof(
		"Directory tree built in %.2fs: %s files, %s directories",
		time.Since(start).Seconds(),
		humanize.Comma(int64(stats.TotalFiles)),
		humanize.Comma(int64(stats.TotalDirectories)),
	)

	// Success.
	return tree, nil
}

// sortWithinRoots sorts paths lexicographically while preserving root
// priority order.
func sortWithinRoots(paths []string, roots []string) {
	rootIndex := func(path string) int {
		for i, root := range roots {
			if absolute, err := filepath.Abs(root); err == nil {
				if within(path, absolute) {
					return i
				}
			}
		}
		return len(roots)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		ri, rj := rootIndex(paths[i]), rootIndex(paths[j])
		if ri != rj {
			return ri < rj
		}
		return paths[i] < paths[j]
	})
}

// within indicates whether or not a path lies beneath a root.
func within(path, root string) bool {
	relative, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return relative == "." || !startsWithParent(relative)
}

// startsWithParent indicates whether or not a relative path escapes upward.
func startsWithParent(relative string) bool {
	return relative == ".." || len(relative) > 2 && relative[:3] == ".."+string(filepath.Separator)
}
