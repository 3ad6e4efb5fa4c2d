package ports

import "errors"

// ErrSnapshotNotFound is returned by SnapshotStorage when no snapshot exists
// for the requested run or step.
var ErrSnapshotNotFound = errors.New("snapshot not found")
