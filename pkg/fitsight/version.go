package fitsight

import (
	"fmt"
)

const (
	// VersionMajor represents the current major version of Fitsight.
	VersionMajor = 0
	// VersionMinor represents the current minor version of Fitsight.
	VersionMinor = 3
	// VersionPatch represents the current patch version of Fitsight.
	VersionPatch = 0
)

// Version provides a stringified version of the current Fitsight version.
var Version string

func init() {
	// Compute the stringified version.
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}
