package extract

import "errors"

var (
	// ErrSourceUnreadable indicates the input path cannot be opened or probed.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrNoVideoTrack indicates the container holds no video track.
	ErrNoVideoTrack = errors.New("no video track")
	// ErrDecoderUnavailable indicates no decoder engine could be created or
	// configured for the selected codec.
	ErrDecoderUnavailable = errors.New("decoder unavailable")
	// ErrInvalidTrackFormat indicates the selected track reports unusable
	// dimensions.
	ErrInvalidTrackFormat = errors.New("invalid track format")
	// ErrSinkUnavailable indicates the frame sink could not be created.
	ErrSinkUnavailable = errors.New("frame sink unavailable")
)
