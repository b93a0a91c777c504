package render

import "errors"

var (
	// ErrNoFrames means the project has nothing to render.
	ErrNoFrames = errors.New("project has no frames")

	// ErrFrameSizeMismatch means a frame's dimensions differ from the
	// first frame, which fixes the output size.
	ErrFrameSizeMismatch = errors.New("frame size does not match the first frame")

	// ErrWritingFailed wraps an encoder that exited non-zero or a
	// finalize that could not complete.
	ErrWritingFailed = errors.New("video writing failed")

	// ErrNoVideoTrack means the file handed to the audio mux has no
	// video stream.
	ErrNoVideoTrack = errors.New("no video track")

	// ErrInvalidVideoDuration means the rendered video probed to a
	// zero or negative duration.
	ErrInvalidVideoDuration = errors.New("invalid video duration")

	// ErrMuxSession means the mux process could not be started.
	ErrMuxSession = errors.New("cannot start audio mux")

	// ErrMuxFailed means the mux ran and failed.
	ErrMuxFailed = errors.New("audio mux failed")

	// ErrLowDiskSpace and ErrLowMemory are preflight failures.
	ErrLowDiskSpace = errors.New("not enough free disk space for export")
	ErrLowMemory    = errors.New("not enough available memory for export")
)
