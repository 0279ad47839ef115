// Package frame owns the Frame Source: permissioned, rate-limited screen
// capture with explicit lane health states, mirroring the cadence/backoff
// shape the teacher applies to its audio and screen loops but adding the
// permission and degraded-state machine the teacher's capturer never needed.
package frame

import (
	"time"
)

// Frame is one captured, still-encoded screen image.
type Frame struct {
	ID        uint64
	Data      []byte
	Timestamp time.Time
}

// State is a Frame Source lifecycle state.
type State string

const (
	Idle       State = "idle"
	Starting   State = "starting"
	Capturing  State = "capturing"
	Degraded   State = "degraded"
	Suspended  State = "suspended"
	Stopped    State = "stopped"
)

// PermissionToken authorizes screen capture. The zero value is never valid.
type PermissionToken struct {
	Granted bool
}

// consecutiveFailureLimit is the number of back-to-back capture failures
// that demote a running source from Capturing to Degraded.
const consecutiveFailureLimit = 3
