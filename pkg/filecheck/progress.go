package filecheck

import (
	"fmt"
)

// Stage encodes the phase of a cache refresh.
type Stage uint8

const (
	// StageIdle indicates that no refresh is running.
	StageIdle Stage = iota
	// StageInitializingDirectoryTree indicates that the directory tree is
	// being rebuilt.
	StageInitializingDirectoryTree
	// StageLoadingProjects indicates that the project list is being loaded.
	StageLoadingProjects
	// StageProcessingProjects indicates that per-project file checks are
	// running.
	StageProcessingProjects
	// StageProcessingTargets indicates that per-target file checks are
	// running.
	StageProcessingTargets
	// StageUpdatingCache indicates that the new cache contents are being
	// swapped in.
	StageUpdatingCache
	// StageCompleted indicates that the refresh finished.
	StageCompleted
)

// Description returns a human-readable description of the refresh stage.
func (s Stage) Description() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageInitializingDirectoryTree:
		return "Initializing directory tree"
	case StageLoadingProjects:
		return "Loading projects"
	case StageProcessingProjects:
		return "Processing projects"
	case StageProcessingTargets:
		return "Processing targets"
	case StageUpdatingCache:
		return "Updating cache"
	case StageCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (s Stage) MarshalText() ([]byte, error) {
	var result string
	switch s {
	case StageIdle:
		result = "idle"
	case StageInitializingDirectoryTree:
		result = "initializing-directory-tree"
	case StageLoadingProjects:
		result = "loading-projects"
	case StageProcessingProjects:
		result = "processing-projects"
	case StageProcessingTargets:
		result = "processing-targets"
	case StageUpdatingCache:
		result = "updating-cache"
	case StageCompleted:
		result = "completed"
	default:
		return nil, fmt.Errorf("invalid refresh stage: %d", s)
	}
	return []byte(result), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (s *Stage) UnmarshalText(textBytes []byte) error {
	text := string(textBytes)
	switch text {
	case "idle":
		*s = StageIdle
	case "initializing-directory-tree":
		*s = StageInitializingDirectoryTree
	case "loading-projects":
		*s = StageLoadingProjects
	case "processing-projects":
		*s = StageProcessingProjects
	case "processing-targets":
		*s = StageProcessingTargets
	case "updating-cache":
		*s = StageUpdatingCache
	case "completed":
		*s = StageCompleted
	default:
		return fmt.Errorf("unknown refresh stage: %s", text)
	}
	return nil
}

// Progress is a snapshot of refresh telemetry. It serializes to JSON and
// round-trips losslessly.
type Progress struct {
	// Stage is the current refresh stage.
	Stage Stage `json:"stage"`
	// RunID identifies the refresh run.
	RunID string `json:"run_id"`
	// StartedAt is the refresh start time in Unix seconds, or 0 if no
	// refresh has run.
	StartedAt int64 `json:"started_at"`
	// DirectoriesTotal is the number of configured image roots.
	DirectoriesTotal int `json:"directories_total"`
	// DirectoriesProcessed is the number of directories scanned so far.
	DirectoriesProcessed int `json:"directories_processed"`
	// FilesScanned is the number of files scanned so far.
	FilesScanned int `json:"files_scanned"`
	// CurrentDirectory is the directory currently being scanned.
	CurrentDirectory string `json:"current_directory"`
	// ProjectsTotal is the number of projects to process.
	ProjectsTotal int `json:"projects_total"`
	// ProjectsProcessed is the number of projects processed so far.
	ProjectsProcessed int `json:"projects_processed"`
	// CurrentProject is the project currently being processed.
	CurrentProject string `json:"current_project"`
	// TargetsTotal is the number of targets to process.
	TargetsTotal int `json:"targets_total"`
	// TargetsProcessed is the number of targets processed so far.
	TargetsProcessed int `json:"targets_processed"`
	// CurrentTarget is the target currently being processed.
	CurrentTarget string `json:"current_target"`
	// FilesFound is the rolling count of image records whose files were
	// found.
	FilesFound int `json:"files_found"`
	// FilesMissing is the rolling count of image records whose files were
	// missing.
	FilesMissing int `json:"files_missing"`
}

// fraction computes a clamped completion fraction.
func fraction(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(processed) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

// Percentage computes the overall refresh completion percentage as a fixed
// piecewise function of the stage and proportional within-stage progress.
func (p Progress) Percentage() float64 {
	switch p.Stage {
	case StageIdle:
		return 0
	case StageInitializingDirectoryTree:
		return 2 + 8*fraction(p.DirectoriesProcessed, p.DirectoriesTotal)
	case StageLoadingProjects:
		return 10
	case StageProcessingProjects:
		return 15 + 50*fraction(p.ProjectsProcessed, p.ProjectsTotal)
	case StageProcessingTargets:
		return 65 + 25*fraction(p.TargetsProcessed, p.TargetsTotal)
	case StageUpdatingCache:
		return 95
	case StageCompleted:
		return 100
	default:
		return 0
	}
}
