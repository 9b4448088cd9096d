package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 20 * time.Millisecond
	testTxID    = "5f9a8b6c7d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e9f8a"
)

type nodeConn struct {
	conn *websocket.Conn
	mu   *sync.Mutex
}

func (c *nodeConn) write(msg rpc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// fakeNode is a websocket server answering wallet rpc requests.
type fakeNode struct {
	srv      *httptest.Server
	mu       *sync.Mutex
	conns    []*nodeConn
	received []rpc.Message
	accepted int
	respond  func(rpc.Message) (rpc.Message, bool)
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{mu: &sync.Mutex{}, respond: defaultRespond}
	upgrader := websocket.Upgrader{}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		nc := &nodeConn{conn: conn, mu: &sync.Mutex{}}
		n.mu.Lock()
		n.conns = append(n.conns, nc)
		n.accepted++
		n.mu.Unlock()

		defer func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, c := range n.conns {
				if c == nc {
					n.conns = append(n.conns[:i], n.conns[i+1:]...)
					break
				}
			}
		}()

		for {
			var msg rpc.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			n.mu.Lock()
			n.received = append(n.received, msg)
			respond := n.respond
			n.mu.Unlock()

			reply, ok := respond(msg)
			if !ok {
				continue
			}
			if err := nc.write(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fakeNode) url() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

func (n *fakeNode) setRespond(fn func(rpc.Message) (rpc.Message, bool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.respond = fn
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, msg := range n.received {
		if msg.Method == method {
			count++
		}
	}
	return count
}

func (n *fakeNode) last(method string) (rpc.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.received) - 1; i >= 0; i-- {
		if n.received[i].Method == method {
			return n.received[i], true
		}
	}
	return rpc.Message{}, false
}

func (n *fakeNode) connections() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

func (n *fakeNode) notify(t *testing.T, method string, payload any) {
	t.Helper()
	n.mu.Lock()
	conns := append([]*nodeConn(nil), n.conns...)
	n.mu.Unlock()
	for _, c := range conns {
		require.NoError(t, c.write(rpc.Message{Method: method, Params: mustJSON(t, payload)}))
	}
}

// drop closes every connection without a close frame.
func (n *fakeNode) drop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		// nolint
		c.conn.UnderlyingConn().Close()
	}
}

func defaultRespond(msg rpc.Message) (rpc.Message, bool) {
	reply := rpc.Message{ID: msg.ID, Method: msg.Method, Params: json.RawMessage("{}")}
	var params any
	switch msg.Method {
	case rpc.MethodGetBlockDagInfo:
		params = rpc.GetBlockDagInfoResponse{NetworkName: "cryptix-simnet", VirtualDaaScore: 4242}
	case rpc.MethodGetVirtualSelectedParentBlueScore:
		params = rpc.GetVirtualSelectedParentBlueScoreResponse{BlueScore: 77}
	case rpc.MethodGetUtxosByAddresses:
		var req rpc.GetUtxosByAddressesRequest
		// nolint
		json.Unmarshal(msg.Params, &req)
		entries := make([]rpc.UtxosByAddressesEntry, 0, len(req.Addresses))
		for i, addr := range req.Addresses {
			entries = append(entries, rpc.UtxosByAddressesEntry{
				Address:   addr,
				Outpoint:  rpc.Outpoint{TransactionID: testTxID, Index: uint32(i)},
				UtxoEntry: rpc.UtxoEntry{Amount: 1_000, BlockDaaScore: 10},
			})
		}
		params = rpc.GetUtxosByAddressesResponse{Entries: entries}
	case rpc.MethodSubmitTransaction:
		var req rpc.SubmitTransactionRequest
		// nolint
		json.Unmarshal(msg.Params, &req)
		if req.Transaction == nil || len(req.Transaction.Inputs) == 0 {
			reply.Params = nil
			reply.Error = &rpc.Error{Message: "transaction has no inputs"}
			return reply, true
		}
		params = rpc.SubmitTransactionResponse{TransactionID: testTxID}
	default:
		return reply, true
	}
	// nolint
	reply.Params, _ = json.Marshal(params)
	return reply, true
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	return buf
}

func newTestClient(t *testing.T, node *fakeNode, opts ...Option) rpc.Client {
	t.Helper()
	c, err := NewClient(context.Background(), node.url(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRequests(t *testing.T) {
	node := newFakeNode(t)
	c := newTestClient(t, node)
	ctx := context.Background()

	info, err := c.GetBlockDagInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4242), info.VirtualDaaScore)
	require.Equal(t, "cryptix-simnet", info.NetworkName)

	blueScore, err := c.GetVirtualSelectedParentBlueScore(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(77), blueScore)

	entries, err := c.GetUtxosByAddresses(ctx, []string{"cryptixsim1a", "cryptixsim1b"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "cryptixsim1b", entries[1].Address)
	require.Equal(t, uint32(1), entries[1].Outpoint.Index)

	tx := &rpc.Transaction{
		Inputs:  []rpc.TransactionInput{{PreviousOutpoint: rpc.Outpoint{TransactionID: testTxID}}},
		Outputs: []rpc.TransactionOutput{{Amount: 500}},
	}
	txid, err := c.SubmitTransaction(ctx, tx, false)
	require.NoError(t, err)
	require.Equal(t, testTxID, txid)

	msg, ok := node.last(rpc.MethodSubmitTransaction)
	require.True(t, ok)
	var req rpc.SubmitTransactionRequest
	require.NoError(t, json.Unmarshal(msg.Params, &req))
	require.Equal(t, uint64(500), req.Transaction.Outputs[0].Amount)
}

func TestRequestErrors(t *testing.T) {
	t.Run("error frame", func(t *testing.T) {
		node := newFakeNode(t)
		c := newTestClient(t, node)

		_, err := c.SubmitTransaction(context.Background(), &rpc.Transaction{}, false)
		require.Error(t, err)
		var rpcErr *rpc.Error
		require.True(t, errors.As(err, &rpcErr))
		require.Equal(t, "transaction has no inputs", rpcErr.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		node := newFakeNode(t)
		node.setRespond(func(rpc.Message) (rpc.Message, bool) { return rpc.Message{}, false })
		c := newTestClient(t, node, WithRequestTimeout(200*time.Millisecond))

		_, err := c.GetBlockDagInfo(context.Background())
		require.ErrorIs(t, err, ErrRequestTimeout)
	})

	t.Run("context canceled", func(t *testing.T) {
		node := newFakeNode(t)
		node.setRespond(func(rpc.Message) (rpc.Message, bool) { return rpc.Message{}, false })
		c := newTestClient(t, node)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := c.GetBlockDagInfo(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed client", func(t *testing.T) {
		node := newFakeNode(t)
		c := newTestClient(t, node)
		c.Close()

		_, err := c.GetBlockDagInfo(context.Background())
		require.ErrorIs(t, err, ErrClientClosed)
	})

	t.Run("dial", func(t *testing.T) {
		_, err := NewClient(context.Background(), "")
		require.Error(t, err)

		_, err = NewClient(context.Background(), "ws://127.0.0.1:1", WithReconnect(false))
		require.Error(t, err)
	})
}

func TestNotifications(t *testing.T) {
	node := newFakeNode(t)
	c := newTestClient(t, node)
	ctx := context.Background()

	var first, second atomic.Uint64
	uid1, err := c.SubscribeVirtualDaaScoreChanged(ctx, func(n *rpc.VirtualDaaScoreChangedNotification) {
		first.Store(n.VirtualDaaScore)
	})
	require.NoError(t, err)
	uid2, err := c.SubscribeVirtualDaaScoreChanged(ctx, func(n *rpc.VirtualDaaScoreChangedNotification) {
		second.Store(n.VirtualDaaScore)
	})
	require.NoError(t, err)
	require.NotEqual(t, uid1, uid2)
	require.Equal(t, 1, node.count(rpc.MethodNotifyVirtualDaaScoreChanged))

	node.notify(t, rpc.NotificationVirtualDaaScoreChanged,
		rpc.VirtualDaaScoreChangedNotification{VirtualDaaScore: 99})
	require.Eventually(t, func() bool {
		return first.Load() == 99 && second.Load() == 99
	}, testTimeout, testTick)

	require.NoError(t, c.Unsubscribe(ctx, uid1))
	require.Zero(t, node.count(rpc.MethodStopNotifyingVirtualDaaScoreChanged))
	require.NoError(t, c.Unsubscribe(ctx, uid2))
	require.Equal(t, 1, node.count(rpc.MethodStopNotifyingVirtualDaaScoreChanged))
	require.Error(t, c.Unsubscribe(ctx, uid2))

	t.Run("utxos", func(t *testing.T) {
		got := make(chan *rpc.UtxosChangedNotification, 1)
		uidA, err := c.SubscribeUtxosChanged(ctx, []string{"cryptixsim1a", "cryptixsim1b"},
			func(n *rpc.UtxosChangedNotification) { got <- n })
		require.NoError(t, err)
		uidB, err := c.SubscribeUtxosChanged(ctx, []string{"cryptixsim1b"},
			func(*rpc.UtxosChangedNotification) {})
		require.NoError(t, err)
		require.Equal(t, 2, node.count(rpc.MethodNotifyUtxosChanged))

		node.notify(t, rpc.NotificationUtxosChanged, rpc.UtxosChangedNotification{
			Added: []rpc.UtxosByAddressesEntry{{Address: "cryptixsim1a"}},
		})
		select {
		case n := <-got:
			require.Len(t, n.Added, 1)
			require.Equal(t, "cryptixsim1a", n.Added[0].Address)
		case <-time.After(testTimeout):
			t.Fatal("utxos notification not delivered")
		}

		// only the address nobody else watches is released
		require.NoError(t, c.Unsubscribe(ctx, uidA))
		msg, ok := node.last(rpc.MethodStopNotifyingUtxosChanged)
		require.True(t, ok)
		var req rpc.NotifyUtxosChangedRequest
		require.NoError(t, json.Unmarshal(msg.Params, &req))
		require.Equal(t, []string{"cryptixsim1a"}, req.Addresses)

		require.NoError(t, c.Unsubscribe(ctx, uidB))
		require.Equal(t, 2, node.count(rpc.MethodStopNotifyingUtxosChanged))

		_, err = c.SubscribeUtxosChanged(ctx, nil, func(*rpc.UtxosChangedNotification) {})
		require.Error(t, err)
	})
}

func TestUtxosNotificationBeforeResponse(t *testing.T) {
	node := newFakeNode(t)
	c := newTestClient(t, node)
	ctx := context.Background()

	notification := rpc.UtxosChangedNotification{
		Added: []rpc.UtxosByAddressesEntry{{Address: "cryptixsim1a"}},
	}
	node.setRespond(func(msg rpc.Message) (rpc.Message, bool) {
		if msg.Method == rpc.MethodNotifyUtxosChanged {
			payload, _ := json.Marshal(notification)
			node.mu.Lock()
			conns := append([]*nodeConn(nil), node.conns...)
			node.mu.Unlock()
			for _, conn := range conns {
				// nolint
				conn.write(rpc.Message{Method: rpc.NotificationUtxosChanged, Params: payload})
			}
		}
		return defaultRespond(msg)
	})

	got := make(chan *rpc.UtxosChangedNotification, 1)
	_, err := c.SubscribeUtxosChanged(ctx, []string{"cryptixsim1a"},
		func(n *rpc.UtxosChangedNotification) { got <- n })
	require.NoError(t, err)

	select {
	case n := <-got:
		require.Len(t, n.Added, 1)
		require.Equal(t, "cryptixsim1a", n.Added[0].Address)
	case <-time.After(testTimeout):
		t.Fatal("notification sent ahead of the response was dropped")
	}

	t.Run("failed request", func(t *testing.T) {
		node.setRespond(func(msg rpc.Message) (rpc.Message, bool) {
			if msg.Method == rpc.MethodNotifyUtxosChanged {
				return rpc.Message{ID: msg.ID, Method: msg.Method, Error: &rpc.Error{Message: "refused"}}, true
			}
			return defaultRespond(msg)
		})

		var failed atomic.Int32
		_, err := c.SubscribeUtxosChanged(ctx, []string{"cryptixsim1b"},
			func(*rpc.UtxosChangedNotification) { failed.Add(1) })
		require.Error(t, err)

		// notifications are dispatched in order, so the second delivery means
		// every callback of the first one has run
		for i := 0; i < 2; i++ {
			node.notify(t, rpc.NotificationUtxosChanged, notification)
			select {
			case <-got:
			case <-time.After(testTimeout):
				t.Fatal("utxos notification not delivered")
			}
		}
		require.Zero(t, failed.Load())
	})
}

func TestReconnect(t *testing.T) {
	node := newFakeNode(t)
	c := newTestClient(t, node)
	ctx := context.Background()

	var score atomic.Uint64
	_, err := c.SubscribeVirtualDaaScoreChanged(ctx, func(n *rpc.VirtualDaaScoreChangedNotification) {
		score.Store(n.VirtualDaaScore)
	})
	require.NoError(t, err)
	_, err = c.SubscribeUtxosChanged(ctx, []string{"cryptixsim1a"}, func(*rpc.UtxosChangedNotification) {})
	require.NoError(t, err)

	node.drop()
	require.Eventually(t, func() bool {
		return node.count(rpc.MethodNotifyVirtualDaaScoreChanged) == 2 &&
			node.count(rpc.MethodNotifyUtxosChanged) == 2
	}, testTimeout, testTick)
	require.Equal(t, 1, node.connections())

	msg, ok := node.last(rpc.MethodNotifyUtxosChanged)
	require.True(t, ok)
	var req rpc.NotifyUtxosChangedRequest
	require.NoError(t, json.Unmarshal(msg.Params, &req))
	require.Equal(t, []string{"cryptixsim1a"}, req.Addresses)

	node.notify(t, rpc.NotificationVirtualDaaScoreChanged,
		rpc.VirtualDaaScoreChangedNotification{VirtualDaaScore: 7})
	require.Eventually(t, func() bool { return score.Load() == 7 }, testTimeout, testTick)

	info, err := c.GetBlockDagInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4242), info.VirtualDaaScore)
}
