package browser

import "errors"

// Interaction faults. Primitives retry locally a bounded number of times and
// return one of these wrapped with the selector that failed; the calling
// driver step decides whether to recover, skip or escalate.
var (
	ErrElementNotInteractable = errors.New("element not interactable")
	ErrFrameNotFound          = errors.New("frame not found")
	ErrDownloadTimeout        = errors.New("download timeout")
	ErrPopupTimeout           = errors.New("popup window did not open")
)

// ErrSessionExists is returned by the registry when a live session already
// holds the key. Callers must release the old session first; silently
// overwriting it would orphan a browser process.
var ErrSessionExists = errors.New("session already registered for key")
