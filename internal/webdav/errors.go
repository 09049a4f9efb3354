package webdav

import "errors"

var (
	// ErrRemoteRejected marks a response the server answered with an error
	// status. Transport failures are wrapped as-is and carry no sentinel.
	ErrRemoteRejected = errors.New("remote rejected request")
)
