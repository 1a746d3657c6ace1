package x11

import (
	"encoding/binary"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// ICCCM WM_STATE value of an iconified window
const iconicState = 3

// server is the part of the X protocol the watcher uses
type server interface {
	root() xproto.Window
	children() ([]xproto.Window, error)
	viewable(win xproto.Window) bool
	clientOf(top xproto.Window) xproto.Window
	pid(win xproto.Window) uint32
	class(win xproto.Window) (instance, class string)
	iconic(win xproto.Window) bool
	deleteWindow(win xproto.Window) error
	nextEvent() (xgb.Event, error)
	close()
}

// client talks to a real X server through xgb
type client struct {
	conn  *xgb.Conn
	rootW xproto.Window
	atoms map[string]xproto.Atom
}

var atomNames = []string{
	"_NET_WM_PID",
	"WM_STATE",
	"WM_CLASS",
	"WM_PROTOCOLS",
	"WM_DELETE_WINDOW",
}

func dial(display string) (*client, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(conn)
	c := &client{
		conn:  conn,
		rootW: setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		c.atoms[name] = reply.Atom
	}

	err = xproto.ChangeWindowAttributesChecked(conn, c.rootW, xproto.CwEventMask,
		[]uint32{xproto.EventMaskSubstructureNotify}).Check()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to select SubstructureNotify on root window")
	}

	return c, nil
}

func (c *client) root() xproto.Window {
	return c.rootW
}

func (c *client) close() {
	c.conn.Close()
}

func (c *client) nextEvent() (xgb.Event, error) {
	ev, xerr := c.conn.WaitForEvent()
	if xerr != nil {
		return nil, errors.New(xerr.Error())
	}
	if ev == nil {
		return nil, nil
	}
	return ev, nil
}

func (c *client) children() ([]xproto.Window, error) {
	reply, err := xproto.QueryTree(c.conn, c.rootW).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query root window tree")
	}
	return reply.Children, nil
}

func (c *client) viewable(win xproto.Window) bool {
	reply, err := xproto.GetWindowAttributes(c.conn, win).Reply()
	if err != nil {
		return false
	}
	return reply.MapState == xproto.MapStateViewable && !reply.OverrideRedirect
}

func (c *client) getProperty(window xproto.Window, atom xproto.Atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *client) hasState(win xproto.Window) bool {
	data, err := c.getProperty(win, c.atoms["WM_STATE"], xproto.GetPropertyTypeAny, 2)
	return err == nil && len(data) >= 4
}

// clientOf finds the client window inside a window manager frame.
// Without a reparenting window manager top is the client.
func (c *client) clientOf(top xproto.Window) xproto.Window {
	if c.hasState(top) {
		return top
	}

	queue := []xproto.Window{top}
	for depth := 0; depth < 3 && len(queue) > 0; depth++ {
		var next []xproto.Window
		for _, win := range queue {
			reply, err := xproto.QueryTree(c.conn, win).Reply()
			if err != nil {
				continue
			}
			for _, child := range reply.Children {
				if c.hasState(child) {
					return child
				}
			}
			next = append(next, reply.Children...)
		}
		queue = next
	}
	return top
}

func (c *client) pid(win xproto.Window) uint32 {
	data, err := c.getProperty(win, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil {
		return 0
	}
	return cardinal(data)
}

func (c *client) class(win xproto.Window) (instance, class string) {
	data, err := c.getProperty(win, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil {
		return "", ""
	}
	return splitClass(data)
}

func (c *client) iconic(win xproto.Window) bool {
	data, err := c.getProperty(win, c.atoms["WM_STATE"], xproto.GetPropertyTypeAny, 2)
	if err != nil {
		return false
	}
	return cardinal(data) == iconicState
}

// deleteWindow asks the client to close win through WM_DELETE_WINDOW and
// kills the client when it does not support the protocol
func (c *client) deleteWindow(win xproto.Window) error {
	data, err := c.getProperty(win, c.atoms["WM_PROTOCOLS"], xproto.AtomAtom, 32)
	if err != nil {
		return errors.Wrapf(err, "failed to read WM_PROTOCOLS of 0x%x", uint32(win))
	}

	if !hasAtom(atomList(data), c.atoms["WM_DELETE_WINDOW"]) {
		if err := xproto.KillClientChecked(c.conn, uint32(win)).Check(); err != nil {
			return errors.Wrapf(err, "failed to kill client of 0x%x", uint32(win))
		}
		return nil
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   c.atoms["WM_PROTOCOLS"],
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(c.atoms["WM_DELETE_WINDOW"]),
			uint32(xproto.TimeCurrentTime),
			0, 0, 0,
		}),
	}
	if err := xproto.SendEventChecked(c.conn, false, win, xproto.EventMaskNoEvent, string(ev.Bytes())).Check(); err != nil {
		return errors.Wrapf(err, "failed to send WM_DELETE_WINDOW to 0x%x", uint32(win))
	}
	return nil
}

func cardinal(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

func atomList(data []byte) []xproto.Atom {
	atoms := make([]xproto.Atom, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		atoms = append(atoms, xproto.Atom(binary.LittleEndian.Uint32(data[i:])))
	}
	return atoms
}

func hasAtom(atoms []xproto.Atom, want xproto.Atom) bool {
	for _, a := range atoms {
		if a == want {
			return true
		}
	}
	return false
}

// splitClass decodes WM_CLASS, two NUL terminated strings
func splitClass(data []byte) (instance, class string) {
	if len(data) == 0 {
		return "", ""
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
