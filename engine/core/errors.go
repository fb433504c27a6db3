package core

import (
	"errors"
)

var (
	// Transient: recovered by the coordinator, never returned from DrawFrame.
	ErrSurfaceZeroArea = errors.New("surface has zero area, swapchain rebuild deferred")

	// Fatal: device or driver failures.
	ErrFenceTimeout     = errors.New("fence wait timed out")
	ErrDeviceLost       = errors.New("graphics device lost")
	ErrNoSurfaceFormats = errors.New("surface reports no supported formats")
	ErrInvalidHandle    = errors.New("invalid or destroyed handle")

	// Fatal: sync contract violations reported by a validating device.
	ErrSemaphoreNotSignaled = errors.New("semaphore waited on without a pending signal")
	ErrFenceNotReset        = errors.New("fence submitted while still signaled")
	ErrSemaphoreBusy        = errors.New("semaphore signaled while a previous signal is still pending")

	// Programmer errors, raised with panic.
	ErrUnknownSyncUsage    = errors.New("sync usage was never registered")
	ErrResourceSetMismatch = errors.New("resource set lists have different lengths")

	ErrCoordinatorShutDown = errors.New("coordinator already shut down")
	ErrUnknown             = errors.New("unknown")
)
