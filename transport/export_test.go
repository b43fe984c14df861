package transport

import "time"

// Exported aliases for testing internal functions from the
// transport_test package.

// DiffFileNameForTest exposes diffFileName.
var DiffFileNameForTest = diffFileName

// EscapeDotForTest exposes escapeDot.
var EscapeDotForTest = escapeDot

// SetClockForTest pins the sender's clock so the store file
// name is deterministic.
func (s *SVNSender) SetClockForTest(now func() time.Time) {
	s.now = now
}
