package audioprobe

import "errors"

// errNoVolume is returned when a platform's volume query tool is missing or
// its output could not be parsed.
var errNoVolume = errors.New("audioprobe: volume not available")
