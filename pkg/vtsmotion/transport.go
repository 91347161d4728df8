package vtsmotion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport owns the socket to the avatar host. It is the only place
// connection state is mutated. Request/response calls are correlated
// by request ID; everything else read off the socket is drained and
// handed to event handlers so the receive buffer never backs up.
type Transport struct {
	config *Config
	logger *MotionLogger

	conn  *websocket.Conn
	state ConnectionState
	token string

	pending map[string]chan *Envelope

	eventHandlers      map[int]EventHandler
	connectionHandlers map[int]ConnectionHandler
	errorHandlers      map[int]ErrorHandler
	nextHandlerID      int

	reconnecting    bool
	lastReconnect   time.Time
	shouldReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wmu    sync.Mutex
}

func NewTransport(config *Config, logger *MotionLogger) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Transport{
		config:             config,
		logger:             logger.WithComponent("transport"),
		state:              Disconnected,
		token:              config.LoadToken(),
		pending:            make(map[string]chan *Envelope),
		eventHandlers:      make(map[int]EventHandler),
		connectionHandlers: make(map[int]ConnectionHandler),
		errorHandlers:      make(map[int]ErrorHandler),
		shouldReconnect:    true,
		ctx:                ctx,
		cancel:             cancel,
	}
}

// Connect dials the host. Authentication is a separate step so a
// caller can inspect the connection before handing over a token.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.state == Connecting || t.state == Authenticating || t.state == Ready {
		t.mu.Unlock()
		return NewConnectionError("already connected or connecting")
	}
	t.setStateLocked(Connecting)
	t.mu.Unlock()

	conn, err := t.dial()
	if err != nil {
		t.mu.Lock()
		t.setStateLocked(Disconnected)
		t.mu.Unlock()
		return WrapError(err, ErrCodeConnectionFailed)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *Transport) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.config.ConnectTimeout}
	conn, _, err := dialer.Dial(t.config.WsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Authenticate performs the token exchange. With an empty cachedToken
// it first requests a fresh one from the host; with a cached token
// that the host rejects it clears the token and re-runs the full
// handshake once.
func (t *Transport) Authenticate(cachedToken string) (string, error) {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return "", NewConnectionError("not connected")
	}
	t.setStateLocked(Authenticating)
	t.mu.Unlock()

	token := cachedToken
	usedCache := token != ""

	if token == "" {
		fresh, err := t.requestToken()
		if err != nil {
			t.failAuth()
			return "", err
		}
		token = fresh
	}

	ok, err := t.sendAuth(token)
	if err != nil {
		t.failAuth()
		return "", err
	}

	if !ok && usedCache {
		// Stale token from a previous session. Discard and redo the
		// full handshake.
		t.logger.Warn("Cached token rejected, requesting a fresh one")
		t.mu.Lock()
		t.token = ""
		t.mu.Unlock()

		token, err = t.requestToken()
		if err != nil {
			t.failAuth()
			return "", err
		}
		ok, err = t.sendAuth(token)
		if err != nil {
			t.failAuth()
			return "", err
		}
	}

	if !ok {
		t.failAuth()
		return "", NewAuthError("host rejected authentication")
	}

	t.mu.Lock()
	t.token = token
	t.setStateLocked(Ready)
	t.mu.Unlock()

	t.logger.LogConnectionEvent("authenticated", Ready, map[string]interface{}{
		"token": maskString(token),
	})
	return token, nil
}

func (t *Transport) failAuth() {
	t.mu.Lock()
	t.setStateLocked(Disconnected)
	t.mu.Unlock()
}

func (t *Transport) requestToken() (string, error) {
	resp, err := t.Request(t.ctx, MsgAuthTokenRequest, AuthTokenRequestData{
		PluginName:      t.config.PluginName,
		PluginDeveloper: t.config.PluginDeveloper,
	})
	if err != nil {
		return "", NewAuthError(fmt.Sprintf("token request failed: %v", err))
	}
	var data AuthTokenResponseData
	if err := resp.DecodeData(&data); err != nil {
		return "", NewAuthError("token response missing authenticationToken")
	}
	if data.AuthenticationToken == "" {
		return "", NewAuthError("host returned empty token")
	}
	return data.AuthenticationToken, nil
}

func (t *Transport) sendAuth(token string) (bool, error) {
	resp, err := t.Request(t.ctx, MsgAuthRequest, AuthRequestData{
		PluginName:          t.config.PluginName,
		PluginDeveloper:     t.config.PluginDeveloper,
		AuthenticationToken: token,
	})
	if err != nil {
		if mErr, okErr := err.(*MotionError); okErr && mErr.Code == ErrCodeHostAPI {
			return false, nil
		}
		return false, err
	}
	var data AuthResponseData
	if err := resp.DecodeData(&data); err != nil {
		return false, NewAuthError("malformed authentication response")
	}
	return data.Authenticated, nil
}

// Request sends an envelope and waits for the matching response. An
// APIError response is returned as a HOST_API_ERROR.
func (t *Transport) Request(ctx context.Context, messageType string, data interface{}) (*Envelope, error) {
	env, err := NewEnvelope(messageType, data)
	if err != nil {
		return nil, WrapError(err, ErrCodeSendFailed)
	}

	ch := make(chan *Envelope, 1)
	t.mu.Lock()
	t.pending[env.RequestID] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, env.RequestID)
		t.mu.Unlock()
	}()

	if err := t.writeEnvelope(env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(t.config.ResponseTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if apiErr := resp.APIErr(); apiErr != nil {
			return nil, apiErr
		}
		return resp, nil
	case <-timer.C:
		return nil, NewTimeoutError(fmt.Sprintf("no response to %s within %s", messageType, t.config.ResponseTimeout))
	case <-ctx.Done():
		return nil, WrapError(ctx.Err(), ErrCodeRecvTimeout)
	}
}

// Send is fire-and-forget. Any host reply is drained by the read loop
// and dispatched to event handlers instead of blocking the caller.
func (t *Transport) Send(messageType string, data interface{}) error {
	env, err := NewEnvelope(messageType, data)
	if err != nil {
		return WrapError(err, ErrCodeSendFailed)
	}
	return t.writeEnvelope(env)
}

func (t *Transport) writeEnvelope(env *Envelope) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return NewSendError("not connected")
	}

	if t.config.DebugWebsocket {
		t.logger.LogEnvelopeEvent("out", env.MessageType, env.RequestID)
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return WrapError(err, ErrCodeSendFailed)
	}
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.mu.Lock()
			stale := conn != t.conn
			state := t.state
			should := t.shouldReconnect
			t.mu.Unlock()

			if stale {
				return
			}
			if t.config.DebugWebsocket {
				t.logger.WithError(err).Debug("Socket read failed")
			}
			if should && (state == Ready || state == Authenticating) {
				t.mu.Lock()
				t.setStateLocked(Reconnecting)
				t.mu.Unlock()
				go func() {
					if rErr := t.Reconnect(); rErr != nil {
						t.handleError(WrapError(rErr, ErrCodeReconnectFailed))
					}
				}()
			}
			return
		}

		if t.config.DebugWebsocket {
			t.logger.LogEnvelopeEvent("in", env.MessageType, env.RequestID)
		}
		t.dispatch(&env)
	}
}

func (t *Transport) dispatch(env *Envelope) {
	t.mu.Lock()
	ch, waited := t.pending[env.RequestID]
	if waited {
		delete(t.pending, env.RequestID)
	}
	handlers := make([]EventHandler, 0, len(t.eventHandlers))
	for _, h := range t.eventHandlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	if waited {
		ch <- env
		return
	}

	if apiErr := env.APIErr(); apiErr != nil {
		t.handleError(apiErr)
		return
	}
	for _, handler := range handlers {
		go handler(env)
	}
}

// Reconnect re-dials and re-authenticates with the cached token.
// Calls are serialized by a reentrancy guard and rate-limited so a
// crashed host is not stormed; a call while one is in flight is a
// no-op.
func (t *Transport) Reconnect() error {
	t.mu.Lock()
	if t.reconnecting {
		t.mu.Unlock()
		return nil
	}
	if !t.shouldReconnect {
		t.mu.Unlock()
		return NewReconnectError("transport closed", 0)
	}
	t.reconnecting = true
	t.setStateLocked(Reconnecting)
	wait := t.config.MinReconnectInterval - time.Since(t.lastReconnect)
	t.lastReconnect = time.Now()
	oldConn := t.conn
	t.conn = nil
	token := t.token
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.reconnecting = false
		t.mu.Unlock()
	}()

	if oldConn != nil {
		oldConn.Close()
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	delay := t.config.ReconnectDelay
	var lastErr error
	for attempt := 1; attempt <= t.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-t.ctx.Done():
			return NewReconnectError("transport closed", attempt)
		default:
		}

		conn, err := t.dial()
		if err != nil {
			lastErr = err
			t.logger.Warnf("Reconnect attempt %d/%d failed: %v", attempt, t.config.MaxReconnectAttempts, err)
			time.Sleep(delay)
			delay *= 2
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		go t.readLoop(conn)

		if _, err := t.Authenticate(token); err != nil {
			lastErr = err
			t.logger.WithError(err).Warn("Re-authentication after reconnect failed")
			conn.Close()
			// A rejected cached token is retried without it.
			token = ""
			time.Sleep(delay)
			delay *= 2
			continue
		}

		t.logger.LogConnectionEvent("reconnected", Ready, map[string]interface{}{
			"attempts": attempt,
		})
		return nil
	}

	t.mu.Lock()
	t.setStateLocked(Disconnected)
	t.mu.Unlock()
	return NewReconnectError(fmt.Sprintf("gave up after %d attempts: %v", t.config.MaxReconnectAttempts, lastErr), t.config.MaxReconnectAttempts)
}

// Close shuts the transport down permanently.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shouldReconnect = false
	t.cancel()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.setStateLocked(Disconnected)
}

func (t *Transport) setStateLocked(state ConnectionState) {
	if t.state == state {
		return
	}
	t.state = state
	handlers := make([]ConnectionHandler, 0, len(t.connectionHandlers))
	for _, h := range t.connectionHandlers {
		handlers = append(handlers, h)
	}
	for _, handler := range handlers {
		go handler(state)
	}
}

func (t *Transport) handleError(err *MotionError) {
	t.logger.LogError(err)
	t.mu.Lock()
	handlers := make([]ErrorHandler, 0, len(t.errorHandlers))
	for _, h := range t.errorHandlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()
	for _, handler := range handlers {
		go handler(err)
	}
}

func (t *Transport) AddEventHandler(handler EventHandler) func() {
	t.mu.Lock()
	id := t.nextHandlerID
	t.nextHandlerID++
	t.eventHandlers[id] = handler
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.eventHandlers, id)
		t.mu.Unlock()
	}
}

func (t *Transport) AddConnectionHandler(handler ConnectionHandler) func() {
	t.mu.Lock()
	id := t.nextHandlerID
	t.nextHandlerID++
	t.connectionHandlers[id] = handler
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.connectionHandlers, id)
		t.mu.Unlock()
	}
}

func (t *Transport) AddErrorHandler(handler ErrorHandler) func() {
	t.mu.Lock()
	id := t.nextHandlerID
	t.nextHandlerID++
	t.errorHandlers[id] = handler
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.errorHandlers, id)
		t.mu.Unlock()
	}
}

func (t *Transport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Ready
}

// Token returns the current auth token for persistence by the caller.
func (t *Transport) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}
