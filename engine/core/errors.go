package core

import (
	"errors"
)

var (
	// ErrInitializationFailed covers missing GPU features, unsuitable devices,
	// unsupported extensions/layers and window/surface creation failures.
	// Fatal; nothing is torn down because nothing was fully built.
	ErrInitializationFailed = errors.New("renderer initialization failed")

	// ErrResourceCreation covers per-item failures (invalid mesh arrays,
	// allocation failures). The session survives; the one resource does not.
	ErrResourceCreation = errors.New("resource creation failed")

	// ErrFrameSubmission covers any driver call failing during
	// recording/submit/present. Aborts only the current frame.
	ErrFrameSubmission = errors.New("frame submission failed")

	// ErrSyncMisuse flags a wait-semaphore/wait-stage list length mismatch.
	// A contract violation in a render stage, not a recoverable runtime error.
	ErrSyncMisuse = errors.New("wait semaphore and wait stage lists diverged")

	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
)
