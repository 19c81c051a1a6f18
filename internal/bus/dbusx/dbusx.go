// Package dbusx is the concrete github.com/godbus/dbus/v5 transport for the
// Thumbnailer1 session-bus interface (spec §4.H, §6). It owns the session
// connection, exports the method handlers, and relays broker.Reply values
// onto the bus as signals; nothing outside this package imports godbus.
package dbusx

import (
	"context"
	"errors"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/zopieux/rthumbd/internal/broker"
	"github.com/zopieux/rthumbd/internal/bus"
	"github.com/zopieux/rthumbd/internal/logger"
	"github.com/zopieux/rthumbd/internal/rthumberr"
)

// Adapter owns the session-bus connection and exports the Thumbnailer1
// object. Construct with Connect, then run Relay in its own goroutine to
// forward broker replies as signals.
type Adapter struct {
	conn   *godbus.Conn
	server bus.Server
}

// Connect acquires the session bus, requests the well-known name, and
// exports the Thumbnailer1 object path. It does not start relaying signals;
// call Relay for that once the broker is running.
func Connect(server bus.Server) (*Adapter, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	a := &Adapter{conn: conn, server: server}

	if err := conn.Export(methodHandler{a}, godbus.ObjectPath(bus.ObjectPath), bus.WellKnownName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export %s: %w", bus.WellKnownName, err)
	}

	node := &introspect.Node{
		Name: bus.ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: bus.WellKnownName,
				Methods: []introspect.Method{
					{Name: "Queue", Args: []introspect.Arg{
						{Name: "uris", Type: "as", Direction: "in"},
						{Name: "mime_types", Type: "as", Direction: "in"},
						{Name: "flavor", Type: "s", Direction: "in"},
						{Name: "scheduler", Type: "s", Direction: "in"},
						{Name: "handle_to_unqueue", Type: "u", Direction: "in"},
						{Name: "handle", Type: "u", Direction: "out"},
					}},
					{Name: "Dequeue", Args: []introspect.Arg{
						{Name: "handle", Type: "u", Direction: "in"},
					}},
					{Name: "GetSupported", Args: []introspect.Arg{
						{Name: "schemes", Type: "as", Direction: "out"},
						{Name: "mime_types", Type: "as", Direction: "out"},
					}},
					{Name: "GetFlavors", Args: []introspect.Arg{
						{Name: "flavors", Type: "as", Direction: "out"},
					}},
				},
				Signals: []introspect.Signal{
					{Name: "Started", Args: []introspect.Arg{{Name: "handle", Type: "u"}}},
					{Name: "Ready", Args: []introspect.Arg{
						{Name: "handle", Type: "u"}, {Name: "uris", Type: "as"},
					}},
					{Name: "Error", Args: []introspect.Arg{
						{Name: "handle", Type: "u"}, {Name: "uri", Type: "s"},
						{Name: "error_code", Type: "i"}, {Name: "message", Type: "s"},
					}},
					{Name: "Finished", Args: []introspect.Arg{{Name: "handle", Type: "u"}}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), godbus.ObjectPath(bus.ObjectPath), "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export introspectable: %w", err)
	}

	reply, err := conn.RequestName(bus.WellKnownName, godbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request name %s: %w", bus.WellKnownName, err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("name %s already owned by another service", bus.WellKnownName)
	}

	return a, nil
}

// Close releases the bus name and closes the connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Relay drains replies off the broker and emits the corresponding
// Started/Ready/Error/Finished signal (spec §4.G "Outbound path"). Run in
// its own goroutine; returns when the replies channel closes or ctx is
// canceled.
func Relay(ctx context.Context, a *Adapter, replies <-chan broker.Reply) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-replies:
			if !ok {
				return
			}
			a.emit(r)
		}
	}
}

func (a *Adapter) emit(r broker.Reply) {
	path := godbus.ObjectPath(bus.ObjectPath)
	var err error
	switch r.Kind {
	case broker.ReplyStarted:
		err = a.conn.Emit(path, bus.WellKnownName+".Started", uint32(r.Handle))
	case broker.ReplyReady:
		err = a.conn.Emit(path, bus.WellKnownName+".Ready", uint32(r.Handle), r.URIs)
	case broker.ReplyError:
		err = a.conn.Emit(path, bus.WellKnownName+".Error", uint32(r.Handle), r.URI, int32(1), r.Message)
	case broker.ReplyFinished:
		err = a.conn.Emit(path, bus.WellKnownName+".Finished", uint32(r.Handle))
	}
	if err != nil {
		logger.Warnf("[dbusx] failed to emit signal for handle %d: %v", r.Handle, err)
	}
}

// methodHandler is the exported object godbus dispatches method calls onto.
// It translates between godbus's call convention and bus.Server, mapping
// rthumberr sentinels to the matching fdo error names.
type methodHandler struct {
	a *Adapter
}

func (h methodHandler) Queue(uris, mimeTypes []string, flavorName, _scheduler string, _handleToUnqueue uint32) (uint32, *godbus.Error) {
	handle, err := h.a.server.Queue(context.Background(), uris, mimeTypes, flavorName)
	if err != nil {
		return 0, toDBusError(err)
	}
	return handle, nil
}

func (h methodHandler) Dequeue(handle uint32) *godbus.Error {
	if err := h.a.server.Dequeue(context.Background(), handle); err != nil {
		return toDBusError(err)
	}
	return nil
}

func (h methodHandler) GetSupported() ([]string, []string, *godbus.Error) {
	supported, err := h.a.server.GetSupported(context.Background())
	if err != nil {
		return nil, nil, toDBusError(err)
	}
	return supported.Schemes, supported.MimeTypes, nil
}

func (h methodHandler) GetFlavors() ([]string, *godbus.Error) {
	flavors, err := h.a.server.GetFlavors(context.Background())
	if err != nil {
		return nil, toDBusError(err)
	}
	return flavors, nil
}

// toDBusError classifies a core-server error into the fdo error name the
// Thumbnailer1 contract expects (spec §7): InvalidArgs for a bad flavor or
// length mismatch, NotSupported for Dequeue, Failed for everything else
// (e.g. a full request queue).
func toDBusError(err error) *godbus.Error {
	switch {
	case errors.Is(err, rthumberr.ErrInvalidFlavor), errors.Is(err, rthumberr.ErrLengthMismatch):
		return godbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []interface{}{err.Error()})
	case errors.Is(err, rthumberr.ErrNotSupported):
		return godbus.NewError("org.freedesktop.DBus.Error.NotSupported", []interface{}{err.Error()})
	default:
		return godbus.MakeFailedError(err)
	}
}
