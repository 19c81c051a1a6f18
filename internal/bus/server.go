package bus

import (
	"context"
	"fmt"

	"github.com/zopieux/rthumbd/internal/broker"
	"github.com/zopieux/rthumbd/internal/flavor"
	"github.com/zopieux/rthumbd/internal/registry"
	"github.com/zopieux/rthumbd/internal/rthumberr"
)

// CoreServer is the transport-agnostic Server implementation: it validates
// input, then delegates to the broker (spec §4.G "Inbound path") and the
// registry's declared MIME coverage. A dbusx.Adapter wraps this in the
// concrete D-Bus method/signal surface.
type CoreServer struct {
	broker   *broker.Broker
	registry *registry.Registry
}

// NewCoreServer wires a broker and registry into a transport-agnostic
// Thumbnailer1 server.
func NewCoreServer(b *broker.Broker, r *registry.Registry) *CoreServer {
	return &CoreServer{broker: b, registry: r}
}

func (s *CoreServer) Queue(_ context.Context, uris, mimeTypes []string, flavorName string) (uint32, error) {
	flv, err := flavor.Parse(flavorName)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", rthumberr.ErrInvalidFlavor, flavorName)
	}
	handle, err := s.broker.Enqueue(uris, mimeTypes, flv)
	if err != nil {
		return 0, err
	}
	return uint32(handle), nil
}

func (s *CoreServer) Dequeue(_ context.Context, _ uint32) error {
	return rthumberr.ErrNotSupported
}

// GetSupported reproduces the original's schemes × mime_types cartesian
// product (original_source/rthumbd/src/dbus.rs get_supported): with one
// scheme ("file") this is just mime_types repeated once per scheme, but the
// shape — parallel same-length slices, not a true set product — is kept
// bit-exact since it's part of the observable wire reply.
func (s *CoreServer) GetSupported(_ context.Context) (Supported, error) {
	mimeTypes := s.registry.SupportedMimeTypes()
	schemes := make([]string, 0, len(mimeTypes))
	products := make([]string, 0, len(mimeTypes))
	for _, scheme := range []string{"file"} {
		for _, mime := range mimeTypes {
			schemes = append(schemes, scheme)
			products = append(products, mime)
		}
	}
	return Supported{Schemes: schemes, MimeTypes: products}, nil
}

func (s *CoreServer) GetFlavors(_ context.Context) ([]string, error) {
	return flavor.Names(), nil
}
