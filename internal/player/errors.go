package player

import (
	"errors"
	"fmt"
)

// User-facing errors. Callers match them with errors.Is and render a fixed
// reply; none of them indicate a failure worth logging.
var (
	ErrMissingTargetVoiceChannel = errors.New("no target voice channel")
	ErrNotConnected              = errors.New("not connected to a voice channel")
	ErrNothingPlaying            = errors.New("nothing is playing")
	ErrIndexOutOfRange           = errors.New("queue index out of range")
	ErrNoResults                 = errors.New("no results found")
	ErrNotSeekable               = errors.New("track is not seekable")
	ErrSeekOutOfRange            = errors.New("seek position past the end of the track")
)

// IndexOutOfRangeError carries the one-based index a caller asked for and the
// queue length at the time.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("queue index %d not in [1, %d]", e.Index, e.Count)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }
