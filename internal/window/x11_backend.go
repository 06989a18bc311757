package window

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

// X11Backend implements the Backend interface using X11
type X11Backend struct {
	conn *xgb.Conn
	root xproto.Window
	mu   sync.Mutex

	activeAtom xproto.Atom
	procRoot   string
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	b := &X11Backend{
		conn:     conn,
		root:     root,
		procRoot: "/proc",
	}

	// _NET_ACTIVE_WINDOW is the EWMH way; without it we use the input focus
	if atom, err := b.getAtom("_NET_ACTIVE_WINDOW"); err == nil {
		b.activeAtom = atom
	} else {
		logger.WithComponent("x11-backend").Debug().Err(err).Msg("_NET_ACTIVE_WINDOW unavailable")
	}

	return b, nil
}

// Connect establishes connection to X11 (already done in NewX11Backend)
func (b *X11Backend) Connect() error {
	return nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// GetFocusedWindow returns the currently focused window
func (b *X11Backend) GetFocusedWindow() (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	win, err := b.activeWindow()
	if err != nil {
		return nil, err
	}
	if win == 0 || win == xproto.InputFocusPointerRoot || win == b.root {
		return nil, nil
	}

	return b.getWindowInfo(win)
}

func (b *X11Backend) activeWindow() (xproto.Window, error) {
	if b.activeAtom != 0 {
		reply, err := xproto.GetProperty(b.conn, false, b.root, b.activeAtom, xproto.AtomWindow, 0, 1).Reply()
		if err == nil && len(reply.Value) >= 4 {
			return xproto.Window(decodeCardinal(reply.Value)), nil
		}
	}

	focusReply, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return 0, errors.Wrap(err, "failed to query input focus")
	}
	return focusReply.Focus, nil
}

// getWindowInfo retrieves information about a window
func (b *X11Backend) getWindowInfo(win xproto.Window) (*Info, error) {
	info := &Info{ID: uint32(win)}

	// Get window title
	titleAtom, err := b.getAtom("_NET_WM_NAME")
	if err == nil {
		if title, err := b.getProperty(win, titleAtom); err == nil {
			info.Title = title
		}
	}

	// Try alternative title property
	if info.Title == "" {
		if title, err := b.getProperty(win, xproto.AtomWmName); err == nil {
			info.Title = title
		}
	}

	if classRaw, err := b.getProperty(win, xproto.AtomWmClass); err == nil {
		info.OwnerName = parseWMClass(classRaw)
	}

	pidAtom, err := b.getAtom("_NET_WM_PID")
	if err == nil {
		pidReply, err := xproto.GetProperty(b.conn, false, win, pidAtom, xproto.AtomCardinal, 0, 1).Reply()
		if err == nil && len(pidReply.Value) >= 4 {
			info.PID = int(decodeCardinal(pidReply.Value))
		}
	}

	if info.OwnerName == "" && info.PID > 0 {
		info.OwnerName = readProcessName(b.procRoot, info.PID)
	}

	return info, nil
}

// getAtom gets an atom ID by name
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to intern atom %s", name)
	}
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}

// parseWMClass returns the class half of WM_CLASS ("instance\0class\0"),
// or the instance when the class is empty
func parseWMClass(raw string) string {
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	if len(parts) >= 1 {
		return parts[0]
	}
	return ""
}

// decodeCardinal reads a 32-bit property value in X11 client byte order
func decodeCardinal(value []byte) uint32 {
	return binary.LittleEndian.Uint32(value[:4])
}

func readProcessName(procRoot string, pid int) string {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
