package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// Metadata represents the decoded portion of an acquired image's metadata
// blob. The blob carries arbitrary keys; only the keys the service consumes
// are decoded, and unknown keys are ignored.
type Metadata struct {
	// FileName is the capture tool's recorded file path, with either forward
	// or backward slash separators.
	FileName string `json:"FileName"`
	// DetectedStars is the optional detected star count.
	DetectedStars *float64 `json:"DetectedStars"`
	// HFR is the optional half-flux radius.
	HFR *float64 `json:"HFR"`
	// Eccentricity is the optional mean star eccentricity.
	Eccentricity *float64 `json:"Eccentricity"`
	// SNR is the optional signal-to-noise ratio.
	SNR *float64 `json:"SNR"`
	// Background is the optional background level.
	Background *float64 `json:"Background"`
	// Median is the optional median level, an older synonym for Background.
	Median *float64 `json:"Median"`
	// ExposureStartTime is the optional exposure start time in RFC 3339
	// format.
	ExposureStartTime string `json:"ExposureStartTime"`
}

// ParseMetadata decodes an image metadata blob. Malformed blobs yield an
// empty metadata value rather than an error, since the blob is written by an
// external tool and its absence is routine.
func ParseMetadata(blob string) Metadata {
	var metadata Metadata
	if err := json.Unmarshal([]byte(blob), &metadata); err != nil {
		return Metadata{}
	}
	return metadata
}

// Basename returns the basename of the recorded file path, splitting on both
// forward and backward slashes. It returns an empty string if no file name
// was recorded.
func (m Metadata) Basename() string {
	if m.FileName == "" {
		return ""
	}
	name := m.FileName
	if index := strings.LastIndexAny(name, "/\\"); index >= 0 {
		name = name[index+1:]
	}
	return name
}

// BackgroundLevel returns the background level, preferring the Background key
// over the older Median key.
func (m Metadata) BackgroundLevel() *float64 {
	if m.Background != nil {
		return m.Background
	}
	return m.Median
}

// StartTimestamp parses the exposure start time into a Unix timestamp. It
// returns nil if the field is absent or malformed.
func (m Metadata) StartTimestamp() *int64 {
	if m.ExposureStartTime == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, m.ExposureStartTime)
	if err != nil {
		return nil
	}
	timestamp := parsed.Unix()
	return &timestamp
}
