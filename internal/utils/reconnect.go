package utils

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

var WsReconnectConfig = struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxElapsed   time.Duration
}{
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
	MaxElapsed:   5 * time.Minute,
}

// ShouldReconnect tells whether the read loop of a node connection should
// try to reconnect after err, and how long to wait before the first attempt.
func ShouldReconnect(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if errors.Is(err, net.ErrClosed) {
		return false, 0
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseTryAgainLater:
			return true, 5 * time.Second
		case websocket.CloseGoingAway,
			websocket.CloseServiceRestart,
			websocket.CloseAbnormalClosure,
			websocket.CloseInternalServerErr:
			return true, time.Second
		default:
			return false, 0
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, time.Second
	}

	return true, time.Second
}
