package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cryptix-network/cryptix-wallet-go/internal/utils"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/gorilla/websocket"
	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 30 * time.Second
	handshakeTimeout      = 10 * time.Second
)

var (
	ErrRequestTimeout = errors.New("rpc request timed out")
	ErrClientClosed   = errors.New("rpc client closed")
	ErrNotConnected   = errors.New("rpc client not connected")
)

// notification binds a notification method to the requests that start and
// stop it on the node.
type notification struct {
	start string
	stop  string
}

var notifications = map[string]notification{
	rpc.NotificationUtxosChanged: {
		start: rpc.MethodNotifyUtxosChanged,
		stop:  rpc.MethodStopNotifyingUtxosChanged,
	},
	rpc.NotificationVirtualSelectedParentBlueScore: {
		start: rpc.MethodNotifyVirtualSelectedParentBlueScore,
		stop:  rpc.MethodStopNotifyingVirtualSelectedParentScore,
	},
	rpc.NotificationVirtualDaaScoreChanged: {
		start: rpc.MethodNotifyVirtualDaaScoreChanged,
		stop:  rpc.MethodStopNotifyingVirtualDaaScoreChanged,
	},
}

type response struct {
	msg rpc.Message
	err error
}

type client struct {
	url            string
	dialer         *websocket.Dialer
	requestTimeout time.Duration
	reconnect      bool

	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Uint64

	pending *ttlcache.Cache[uint64, chan response]

	// writeMu serializes writes on conn, gorilla allows one concurrent writer.
	writeMu *sync.Mutex
	mu      *sync.RWMutex
	conn    *websocket.Conn
	closed  bool

	subscribers *types.SubscriberItemMap[json.RawMessage]
	// watched tracks the addresses of every utxo subscription by uid.
	watched map[string][]string
}

// NewClient dials the node at url and returns an rpc.Client speaking JSON
// frames over the websocket.
func NewClient(ctx context.Context, url string, opts ...Option) (rpc.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("missing rpc server url")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &client{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		requestTimeout: defaultRequestTimeout,
		reconnect:      true,
		ctx:            ctx,
		cancel:         cancel,
		writeMu:        &sync.Mutex{},
		mu:             &sync.RWMutex{},
		subscribers:    types.NewSubscriberItemMap[json.RawMessage](),
		watched:        make(map[string][]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.pending = ttlcache.New(
		ttlcache.WithTTL[uint64, chan response](c.requestTimeout),
		ttlcache.WithDisableTouchOnHit[uint64, chan response](),
	)
	c.pending.OnEviction(func(
		_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[uint64, chan response],
	) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		select {
		case item.Value() <- response{err: ErrRequestTimeout}:
		default:
		}
	})

	conn, err := c.dial()
	if err != nil {
		cancel()
		return nil, err
	}
	c.conn = conn

	go c.pending.Start()
	go c.readLoop(conn)

	log.WithField("url", url).Debug("connected to rpc server")
	return c, nil
}

func (c *client) GetUtxosByAddresses(
	ctx context.Context, addresses []string,
) ([]rpc.UtxosByAddressesEntry, error) {
	var resp rpc.GetUtxosByAddressesResponse
	req := rpc.GetUtxosByAddressesRequest{Addresses: addresses}
	if err := c.call(ctx, rpc.MethodGetUtxosByAddresses, req, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *client) GetBlockDagInfo(ctx context.Context) (*rpc.GetBlockDagInfoResponse, error) {
	var resp rpc.GetBlockDagInfoResponse
	if err := c.call(ctx, rpc.MethodGetBlockDagInfo, rpc.GetBlockDagInfoRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) GetVirtualSelectedParentBlueScore(ctx context.Context) (uint64, error) {
	var resp rpc.GetVirtualSelectedParentBlueScoreResponse
	if err := c.call(
		ctx, rpc.MethodGetVirtualSelectedParentBlueScore,
		rpc.GetVirtualSelectedParentBlueScoreRequest{}, &resp,
	); err != nil {
		return 0, err
	}
	return resp.BlueScore, nil
}

func (c *client) SubmitTransaction(
	ctx context.Context, tx *rpc.Transaction, allowOrphan bool,
) (string, error) {
	var resp rpc.SubmitTransactionResponse
	req := rpc.SubmitTransactionRequest{Transaction: tx, AllowOrphan: allowOrphan}
	if err := c.call(ctx, rpc.MethodSubmitTransaction, req, &resp); err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

func (c *client) SubscribeUtxosChanged(
	ctx context.Context, addresses []string, cb types.Callback[*rpc.UtxosChangedNotification],
) (string, error) {
	if len(addresses) == 0 {
		return "", fmt.Errorf("missing addresses")
	}

	// Registered before the request so notifications sent ahead of the
	// response are delivered.
	c.mu.Lock()
	uid := c.subscribers.Add(rpc.NotificationUtxosChanged, decodeInto(cb))
	c.watched[uid] = slices.Clone(addresses)
	c.mu.Unlock()

	req := rpc.NotifyUtxosChangedRequest{Addresses: addresses}
	if err := c.call(ctx, rpc.MethodNotifyUtxosChanged, req, nil); err != nil {
		c.mu.Lock()
		c.subscribers.Remove(uid)
		delete(c.watched, uid)
		c.mu.Unlock()
		return "", err
	}
	return uid, nil
}

func (c *client) SubscribeVirtualSelectedParentBlueScoreChanged(
	ctx context.Context, cb types.Callback[*rpc.VirtualSelectedParentBlueScoreChangedNotification],
) (string, error) {
	return c.subscribe(ctx, rpc.NotificationVirtualSelectedParentBlueScore, decodeInto(cb))
}

func (c *client) SubscribeVirtualDaaScoreChanged(
	ctx context.Context, cb types.Callback[*rpc.VirtualDaaScoreChangedNotification],
) (string, error) {
	return c.subscribe(ctx, rpc.NotificationVirtualDaaScoreChanged, decodeInto(cb))
}

// subscribe registers cb for a parameterless notification, starting it on the
// node only for the first subscriber.
func (c *client) subscribe(
	ctx context.Context, key string, cb types.Callback[json.RawMessage],
) (string, error) {
	c.mu.Lock()
	live := c.subscribers.Has(key)
	uid := c.subscribers.Add(key, cb)
	c.mu.Unlock()

	if live {
		return uid, nil
	}
	if err := c.call(ctx, notifications[key].start, struct{}{}, nil); err != nil {
		c.mu.Lock()
		c.subscribers.Remove(uid)
		c.mu.Unlock()
		return "", err
	}
	return uid, nil
}

// Unsubscribe drops the callback registered under uid and stops the
// notification on the node when nothing listens to it anymore.
func (c *client) Unsubscribe(ctx context.Context, uid string) error {
	c.mu.Lock()
	key, ok := c.subscribers.Remove(uid)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("subscription %s not found", uid)
	}
	addresses := c.watched[uid]
	delete(c.watched, uid)
	stillWatched := make(map[string]struct{})
	for _, addrs := range c.watched {
		for _, addr := range addrs {
			stillWatched[addr] = struct{}{}
		}
	}
	live := c.subscribers.Has(key)
	c.mu.Unlock()

	if key == rpc.NotificationUtxosChanged {
		stale := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			if _, ok := stillWatched[addr]; !ok {
				stale = append(stale, addr)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		req := rpc.NotifyUtxosChangedRequest{Addresses: stale}
		return c.call(ctx, rpc.MethodStopNotifyingUtxosChanged, req, nil)
	}

	if live {
		return nil
	}
	return c.call(ctx, notifications[key].stop, struct{}{}, nil)
}

func (c *client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.writeMu.Lock()
		// nolint
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		// nolint
		conn.Close()
	}
	c.pending.Stop()
	c.pending.DeleteAll()
}

func (c *client) call(ctx context.Context, method string, params, result any) error {
	buf, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	id := c.nextID.Add(1)
	ch := make(chan response, 1)
	c.pending.Set(id, ch, ttlcache.DefaultTTL)
	defer c.pending.Delete(id)

	if err := c.write(rpc.Message{ID: id, Method: method, Params: buf}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClientClosed
	case resp := <-ch:
		if resp.err != nil {
			return fmt.Errorf("%s: %w", method, resp.err)
		}
		if resp.msg.Error != nil {
			return resp.msg.Error
		}
		if result == nil || len(resp.msg.Params) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.msg.Params, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}
		return nil
	}
}

func (c *client) write(msg rpc.Message) error {
	c.mu.RLock()
	conn, closed := c.conn, c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClientClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Method, err)
	}
	return nil
}

func (c *client) dial() (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *client) readLoop(conn *websocket.Conn) {
	for {
		var msg rpc.Message
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				log.WithError(err).Warn("rpc client: dropped malformed frame")
				continue
			}
			c.onDisconnect(conn, err)
			return
		}

		if msg.ID == 0 {
			c.dispatch(msg)
			continue
		}
		item := c.pending.Get(msg.ID)
		if item == nil {
			log.WithField("id", msg.ID).Debug("rpc client: response for unknown request")
			continue
		}
		select {
		case item.Value() <- response{msg: msg}:
		default:
		}
	}
}

func (c *client) dispatch(msg rpc.Message) {
	c.mu.RLock()
	items := c.subscribers.Items(msg.Method)
	c.mu.RUnlock()
	if len(items) == 0 {
		log.WithField("method", msg.Method).Debug("rpc client: notification without subscribers")
		return
	}
	for _, item := range items {
		item.Callback(msg.Params)
	}
}

func (c *client) onDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	// nolint
	conn.Close()

	retry, delay := utils.ShouldReconnect(err)
	if !retry || !c.reconnect {
		log.WithError(err).Warn("rpc client: connection lost")
		return
	}
	log.WithError(err).Warnf("rpc client: connection lost, reconnecting in %s", delay)

	select {
	case <-c.ctx.Done():
		return
	case <-time.After(delay):
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = utils.WsReconnectConfig.InitialDelay
	b.MaxInterval = utils.WsReconnectConfig.MaxDelay
	b.Multiplier = utils.WsReconnectConfig.Multiplier
	b.MaxElapsedTime = utils.WsReconnectConfig.MaxElapsed

	attempt := 0
	var newConn *websocket.Conn
	if err := backoff.Retry(func() error {
		attempt++
		var err error
		newConn, err = c.dial()
		if err != nil {
			log.WithError(err).Debugf("rpc client: reconnection attempt %d failed", attempt)
		}
		return err
	}, backoff.WithContext(b, c.ctx)); err != nil {
		log.WithError(err).Error("rpc client: giving up reconnecting")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		// nolint
		newConn.Close()
		return
	}
	c.conn = newConn
	c.mu.Unlock()

	go c.readLoop(newConn)
	c.resubscribe()
	log.WithField("attempts", attempt).Info("rpc client: reconnected")
}

// resubscribe issues again the notify requests of every live subscriber
// group, the node forgets them with the connection.
func (c *client) resubscribe() {
	c.mu.RLock()
	keys := c.subscribers.Keys()
	addresses := make([]string, 0)
	seen := make(map[string]struct{})
	for _, addrs := range c.watched {
		for _, addr := range addrs {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			addresses = append(addresses, addr)
		}
	}
	c.mu.RUnlock()
	slices.Sort(addresses)

	ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
	defer cancel()
	for _, key := range keys {
		var err error
		if key == rpc.NotificationUtxosChanged {
			req := rpc.NotifyUtxosChangedRequest{Addresses: addresses}
			err = c.call(ctx, rpc.MethodNotifyUtxosChanged, req, nil)
		} else {
			err = c.call(ctx, notifications[key].start, struct{}{}, nil)
		}
		if err != nil {
			log.WithError(err).WithField("notification", key).Warn(
				"rpc client: failed to restore subscription",
			)
		}
	}
}

func decodeInto[T any](cb types.Callback[*T]) types.Callback[json.RawMessage] {
	return func(payload json.RawMessage) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			log.WithError(err).Warn("rpc client: failed to decode notification")
			return
		}
		cb(&v)
	}
}
