// Package debug holds process-wide test-mode toggles.
package debug

import "os"

// ForceSpillMode, when set via the TURBOCLF_FORCE_SPILL environment
// variable, makes clf.Fresh and clf.Merge spill to a file regardless of the
// configured in-memory threshold. Test fixtures use it to exercise the
// spilled-storage code path without constructing tens of thousands of
// entries.
func ForceSpillMode() bool {
	return os.Getenv("TURBOCLF_FORCE_SPILL") != ""
}
