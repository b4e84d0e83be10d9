package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthInvalid means the credentials were rejected; the task never starts
	ErrAuthInvalid = errors.New("spotify auth invalid")
	// ErrCollectionFailed means a remote read failed while paginating a source
	ErrCollectionFailed = errors.New("track collection failed")
	// ErrNoTracksFound means the source yielded no tracks
	ErrNoTracksFound = errors.New("no tracks found")
	// ErrUserNotFound means the requesting user is not registered
	ErrUserNotFound = errors.New("no user found")
	// ErrNoValidTracks means every track ref failed validation
	ErrNoValidTracks = errors.New("no valid tracks to add")
	// ErrCreationFailed means the destination playlist could not be created
	ErrCreationFailed = errors.New("unable to create new playlist")
	// ErrPartialWriteFailure means a batch write was not acknowledged
	ErrPartialWriteFailure = errors.New("unable to add tracks to playlist")
	// ErrTransport is a generic upstream fault
	ErrTransport = errors.New("transport error")
)

// PartialWriteError reports how far a batched write got before it failed.
// The playlist it names is left in place.
type PartialWriteError struct {
	PlaylistID string
	Written    int
	Total      int
	Err        error
}

func (e *PartialWriteError) Error() string {
	msg := fmt.Sprintf("%s %s: added %d/%d tracks", ErrPartialWriteFailure, e.PlaylistID, e.Written, e.Total)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialWriteFailure}
	}
	return []error{ErrPartialWriteFailure, e.Err}
}
