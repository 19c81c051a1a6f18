// Package bus declares the Thumbnailer1 surface independently of any
// concrete transport, so the broker and registry never import a D-Bus
// library directly (spec §4.H, §6). CoreServer implements Server; the only
// transport adapter shipped here is internal/bus/dbusx, and the split keeps the compute layers transport-free
// the way the original's core crates never imported zbus.
package bus

import "context"

// WellKnownName and ObjectPath are fixed by the Thumbnailer1 wire contract;
// any conforming client (GNOME/KDE file managers) expects exactly these.
const (
	WellKnownName = "org.freedesktop.thumbnails.Thumbnailer1"
	ObjectPath    = "/org/freedesktop/thumbnails/Thumbnailer1"
)

// Supported is the GetSupported() return shape: cartesian product of
// schemes (always just "file") and the registry's declared MIME types, kept
// as a product to match the original's itertools::cartesian_product output
// shape exactly (spec §6).
type Supported struct {
	Schemes   []string
	MimeTypes []string
}

// Server is what a transport adapter needs to serve Thumbnailer1 requests.
// A concrete adapter (dbusx.Adapter) implements the bus method dispatch and
// calls into this interface; nothing here knows about D-Bus wire types.
type Server interface {
	// Queue validates flavor, enqueues the batch, and returns its handle. A
	// flavor parse failure must surface as an InvalidArgs-class error; a
	// uris/mime_types length mismatch likewise (spec §9 open question #2).
	Queue(ctx context.Context, uris, mimeTypes []string, flavor string) (uint32, error)

	// Dequeue always fails; cancellation is a non-goal (spec §4.H, §9).
	Dequeue(ctx context.Context, handle uint32) error

	// GetSupported returns the declared scheme/MIME coverage.
	GetSupported(ctx context.Context) (Supported, error)

	// GetFlavors returns the four flavor names in declaration order.
	GetFlavors(ctx context.Context) ([]string, error)
}
