package fitsight

import (
	"os"
)

// DebugEnabled controls whether or not debugging is enabled for Fitsight. It
// is set automatically based on the FITSIGHT_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("FITSIGHT_DEBUG") == "1"
}
