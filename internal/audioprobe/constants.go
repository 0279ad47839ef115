package audioprobe

import "time"

// PollTimeout bounds one Poll call; past this the probe returns whatever it
// has gathered so far with Incomplete set.
const PollTimeout = 500 * time.Millisecond

// execTimeout bounds each individual OS shell-out inside a poll.
const execTimeout = 400 * time.Millisecond
