package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestShouldReconnect(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
		delay    time.Duration
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
			delay:    0,
		},
		{
			name:     "going away reconnects",
			err:      &websocket.CloseError{Code: websocket.CloseGoingAway},
			expected: true,
			delay:    time.Second,
		},
		{
			name:     "service restart reconnects",
			err:      &websocket.CloseError{Code: websocket.CloseServiceRestart},
			expected: true,
			delay:    time.Second,
		},
		{
			name:     "abnormal closure reconnects",
			err:      &websocket.CloseError{Code: websocket.CloseAbnormalClosure},
			expected: true,
			delay:    time.Second,
		},
		{
			name:     "try again later reconnects with longer backoff",
			err:      &websocket.CloseError{Code: websocket.CloseTryAgainLater},
			expected: true,
			delay:    5 * time.Second,
		},
		{
			name:     "normal closure does not reconnect",
			err:      &websocket.CloseError{Code: websocket.CloseNormalClosure},
			expected: false,
			delay:    0,
		},
		{
			name:     "policy violation does not reconnect",
			err:      &websocket.CloseError{Code: websocket.ClosePolicyViolation},
			expected: false,
			delay:    0,
		},
		{
			name:     "canceled does not reconnect",
			err:      context.Canceled,
			expected: false,
			delay:    0,
		},
		{
			name:     "wrapped net.ErrClosed does not reconnect",
			err:      fmt.Errorf("read: %w", net.ErrClosed),
			expected: false,
			delay:    0,
		},
		{
			name:     "timeout reconnects",
			err:      &timeoutError{},
			expected: true,
			delay:    time.Second,
		},
		{
			name:     "plain error reconnects",
			err:      errors.New("connection dropped"),
			expected: true,
			delay:    time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, delay := ShouldReconnect(tt.err)
			if got != tt.expected {
				t.Fatalf("expected shouldReconnect=%v, got %v", tt.expected, got)
			}
			if delay != tt.delay {
				t.Fatalf("expected delay=%v, got %v", tt.delay, delay)
			}
		})
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "timeout error" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return false }
