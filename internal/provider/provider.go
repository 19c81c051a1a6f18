// Package provider defines the contract every decoder/resizer plugin
// satisfies (spec §4.D).
package provider

import "github.com/zopieux/rthumbd/internal/media"

// Provider decodes and thumbnails media for a fixed set of MIME types. A
// Provider holds no per-request state: it is constructed once at startup
// and shared across every request, so Process must be safe to call
// concurrently on the same instance.
type Provider interface {
	// Name is a short descriptive name, used only for logging.
	Name() string

	// SupportedMimeTypes lists the MIME types this provider claims at
	// registration time. The list is static for the lifetime of the
	// provider.
	SupportedMimeTypes() []string

	// Process runs one job synchronously to completion: it may block on
	// disk I/O and CPU-bound decode/resize work, and must not be called
	// from a context that cannot tolerate blocking. opaqueID only needs to
	// be unique within the chunk currently being processed; it is used to
	// make concurrent temp-file names collision-free.
	Process(opaqueID int, cacheRoot string, job media.Job) error
}
