package filecheck

import (
	"fmt"
)

// RefreshStatus encodes the state of the file-existence cache as observed by
// a read.
type RefreshStatus uint8

const (
	// RefreshStatusNotNeeded indicates that the cache is populated and within
	// its freshness window.
	RefreshStatusNotNeeded RefreshStatus = iota
	// RefreshStatusNeedsRefresh indicates that the cache is empty or expired
	// and no refresh is running.
	RefreshStatusNeedsRefresh
	// RefreshStatusInProgressServeStale indicates that a refresh is running
	// and prior data exists; reads return stale data immediately.
	RefreshStatusInProgressServeStale
	// RefreshStatusInProgressWait indicates that a refresh is running and no
	// prior data exists; reads return a loading status without data.
	RefreshStatusInProgressWait
)

// Description returns a human-readable description of the refresh status.
func (s RefreshStatus) Description() string {
	switch s {
	case RefreshStatusNotNeeded:
		return "Not needed"
	case RefreshStatusNeedsRefresh:
		return "Needs refresh"
	case RefreshStatusInProgressServeStale:
		return "In progress (serving stale data)"
	case RefreshStatusInProgressWait:
		return "In progress (waiting for initial data)"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (s RefreshStatus) MarshalText() ([]byte, error) {
	var result string
	switch s {
	case RefreshStatusNotNeeded:
		result = "not-needed"
	case RefreshStatusNeedsRefresh:
		result = "needs-refresh"
	case RefreshStatusInProgressServeStale:
		result = "in-progress-serve-stale"
	case RefreshStatusInProgressWait:
		result = "in-progress-wait"
	default:
		return nil, fmt.Errorf("invalid refresh status: %d", s)
	}
	return []byte(result), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (s *RefreshStatus) UnmarshalText(textBytes []byte) error {
	text := string(textBytes)
	switch text {
	case "not-needed":
		*s = RefreshStatusNotNeeded
	case "needs-refresh":
		*s = RefreshStatusNeedsRefresh
	case "in-progress-serve-stale":
		*s = RefreshStatusInProgressServeStale
	case "in-progress-wait":
		*s = RefreshStatusInProgressWait
	default:
		return fmt.Errorf("unknown refresh status: %s", text)
	}
	return nil
}
