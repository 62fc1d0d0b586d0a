package kv

import "errors"

// ErrResizeNeeded is returned by a Resizer-backed Database when a
// write would exceed the backend's current capacity. The caller
// (storage/chain's writer) must call Resize under exclusive access
// and retry the write.
var ErrResizeNeeded = errors.New("kv: backend needs resizing before this write fits")

// ErrNotFound is the canonical "key absent" sentinel all three
// backends normalize to, so callers don't need backend-specific error
// checks.
var ErrNotFound = errors.New("kv: key not found")
