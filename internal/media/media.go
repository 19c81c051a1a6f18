// Package media holds the unit-of-work types shared between the broker and
// the provider registry: MediaRef, and the batch/job envelopes that carry
// it alongside a handle and flavor.
package media

import "github.com/zopieux/rthumbd/internal/flavor"

// Handle identifies one Queue request for the lifetime of the process. It
// is assigned by the broker, starting at 1, and is never reused. Overflow
// of the underlying uint32 after 2^32-1 requests is not handled — the
// service is expected to be restarted long before that many requests are
// queued.
type Handle uint32

// Ref is the unit of work submitted by a client: a source URI (currently
// only file:// is accepted) and its declared MIME type, which selects the
// provider. Refs are created once on request entry, cloned when a batch is
// split into chunks, and never mutated afterwards.
type Ref struct {
	URI      string
	MimeType string
}

// Batch is one Queue invocation's worth of media, sharing a single handle
// and flavor. It is immutable after construction.
type Batch struct {
	Handle Handle
	Flavor flavor.Flavor
	Medias []Ref
}

// Job is a single-item work unit after the registry fans a batch out by
// MIME type and chunk.
type Job struct {
	Handle Handle
	Flavor flavor.Flavor
	Media  Ref
}
