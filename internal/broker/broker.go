// Package broker bridges the async, single-threaded request surface (the
// bus) to the synchronous, parallel compute layer (the registry). See
// spec §4.G and §5.
package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zopieux/rthumbd/internal/flavor"
	"github.com/zopieux/rthumbd/internal/media"
	"github.com/zopieux/rthumbd/internal/registry"
	"github.com/zopieux/rthumbd/internal/rthumberr"
)

// Reply is one outbound signal destined for the bus surface.
type Reply struct {
	Kind    ReplyKind
	Handle  media.Handle
	URIs    []string // Ready
	URI     string   // Error
	Message string   // Error
}

type ReplyKind int

const (
	ReplyStarted ReplyKind = iota
	ReplyReady
	ReplyError
	ReplyFinished
)

// Broker owns the handle counter and the two channels that connect the bus
// dispatch loop to the blocking compute pool.
type Broker struct {
	registry *registry.Registry

	requests chan media.Batch
	replies  chan Reply

	nextHandle atomic.Uint32

	closeMu sync.Mutex // serializes Close against the closed-check-then-send in Enqueue
	closed  bool

	workerSem chan struct{} // bounds the blocking-compute layer (spec §5 layer 2)
}

// Config holds the broker's channel/pool sizing knobs (spec §9 open
// question #6: these used to be a hardcoded, too-small default).
type Config struct {
	RequestChannelCapacity int
	ReplyChannelCapacity   int
	WorkerPoolSize         int
}

// New constructs a Broker. New returns immediately; call Run in its own
// goroutine to start the dispatch loop.
func New(reg *registry.Registry, cfg Config) *Broker {
	b := &Broker{
		registry:  reg,
		requests:  make(chan media.Batch, cfg.RequestChannelCapacity),
		replies:   make(chan Reply, cfg.ReplyChannelCapacity),
		workerSem: make(chan struct{}, cfg.WorkerPoolSize),
	}
	b.nextHandle.Store(1)
	return b
}

// Enqueue assigns a fresh handle to medias/flavor and enqueues the batch
// for processing, implementing the Queue bus method's inbound path (spec
// §4.G "Inbound path"). It returns ErrChannelClosed if the request channel
// has been closed (broker shutdown racing with an inbound call).
func (b *Broker) Enqueue(uris, mimeTypes []string, flv flavor.Flavor) (media.Handle, error) {
	if len(uris) != len(mimeTypes) {
		return 0, fmt.Errorf("%w: %d vs %d", rthumberr.ErrLengthMismatch, len(uris), len(mimeTypes))
	}

	// fetch_add-with-sequential-consistency equivalent: Add returns the new
	// value, so subtracting 1 recovers the value assigned to this caller.
	// Wraparound past 2^32-1 is unhandled, per spec §9 open question #4.
	handle := media.Handle(b.nextHandle.Add(1) - 1)

	medias := make([]media.Ref, len(uris))
	for i := range uris {
		medias[i] = media.Ref{URI: uris[i], MimeType: mimeTypes[i]}
	}

	batch := media.Batch{Handle: handle, Flavor: flv, Medias: medias}

	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return 0, rthumberr.ErrChannelClosed
	}
	select {
	case b.requests <- batch:
		return handle, nil
	default:
		return 0, rthumberr.ErrQueueFull
	}
}

// Replies exposes the outbound reply stream so the bus adapter can emit
// signals as they arrive.
func (b *Broker) Replies() <-chan Reply {
	return b.replies
}

// Run is the single cooperative dispatch loop described in spec §4.G: it
// services inbound batches, pushing a Started reply for each, without ever
// blocking on the registry itself. Run does not forward replies to the bus;
// the bus adapter drains Replies() for that. Each batch is handed to a blocking
// worker (bounded by workerSem, spec §5 layer 2) that calls
// registry.ProcessRequest, itself internally parallel (spec §5 layer 3).
// Run returns when ctx is canceled.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-b.requests:
			if !ok {
				return
			}
			b.replies <- Reply{Kind: ReplyStarted, Handle: batch.Handle}
			go b.dispatch(ctx, batch)
		}
	}
}

// dispatch runs one batch on the blocking compute layer and emits the
// outbound Ready/Error/Finished sequence once the registry returns (spec
// §4.G "Outbound path"). Finished is always sent last, even if every item
// failed.
func (b *Broker) dispatch(ctx context.Context, batch media.Batch) {
	select {
	case b.workerSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-b.workerSem }()

	successes, failures := b.registry.ProcessRequest(ctx, batch)

	uris := make([]string, len(successes))
	for i, ref := range successes {
		uris[i] = ref.URI
	}
	b.replies <- Reply{Kind: ReplyReady, Handle: batch.Handle, URIs: uris}

	for _, f := range failures {
		b.replies <- Reply{Kind: ReplyError, Handle: batch.Handle, URI: f.Media.URI, Message: f.Message}
	}

	b.replies <- Reply{Kind: ReplyFinished, Handle: batch.Handle}
}

// Close stops accepting new requests. In-flight dispatches still run to
// completion and still emit their Finished reply.
func (b *Broker) Close() {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.requests)
}
