package live

import (
	"errors"

	"github.com/koscakluka/ema-live/core/realtime"
)

var (
	// ErrPermission is returned when the microphone could not be opened.
	ErrPermission = errors.New("microphone access denied")
	// ErrConnect wraps handshake failures; the session never opened.
	ErrConnect = realtime.ErrConnect
	// ErrTransport is carried by a session that ended on a connection failure.
	ErrTransport = realtime.ErrTransport
	// ErrRemoteClosed is carried by a session the endpoint closed.
	ErrRemoteClosed = realtime.ErrRemoteClosed
	// ErrSessionActive is returned by Start while another session is open.
	ErrSessionActive = errors.New("a session is already active")
	// ErrControllerClosed is returned by Start after Close.
	ErrControllerClosed = errors.New("controller closed")
)
