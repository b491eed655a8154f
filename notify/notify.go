// Package notify listens to the solver's notification channel and resolves
// temporary quote ids to on-chain quote ids as the solver reports them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/coder/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	STATUS_SUCCESS = "success"
	STATUS_FAILED  = "failed"

	DEFAULT_PING_INTERVAL = 20 * time.Second
)

var (
	ErrTimeout     = errors.New("timed out waiting for quote confirmation")
	ErrQuoteFailed = errors.New("quote failed")
	ErrClosed      = errors.New("notification channel closed")
)

// Config for initializing a Manager
type Config struct {
	// URL defaults to the public notification endpoint. http(s) schemes are
	// mapped to ws(s).
	URL     string
	AppName string
	// Account is the trading account whose notifications are subscribed
	Account common.Address
	// Timeout bounds WaitForQuote, 120s by default
	Timeout      time.Duration
	PingInterval time.Duration
	Logger       *zerolog.Logger
}

// Event is one quote notification.
type Event struct {
	TempQuoteID    int64
	QuoteID        int64
	ActionStatus   string
	LastSeenAction string
	Raw            string
}

// Manager owns one subscription to the notification channel
type Manager struct {
	url          string
	appName      string
	account      common.Address
	timeout      time.Duration
	pingInterval time.Duration
	logger       zerolog.Logger

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	// terminal events by temp quote id, kept so a wait that starts after
	// the notification still sees it
	settled  map[int64]Event
	waiters  map[int64][]chan Event
	handlers []func(Event)

	wg sync.WaitGroup
	mu sync.RWMutex
}

func New(cfg Config) *Manager {
	rawURL := cfg.URL
	if rawURL == "" {
		rawURL = constants.NOTIFICATION_WS_URL
	}
	appName := cfg.AppName
	if appName == "" {
		appName = constants.NOTIFICATION_APP_NAME
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DEFAULT_NOTIFY_TIMEOUT
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = DEFAULT_PING_INTERVAL
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "notify").Logger()
	}

	return &Manager{
		url:          rawURL,
		appName:      appName,
		account:      cfg.Account,
		timeout:      timeout,
		pingInterval: pingInterval,
		logger:       logger,
		done:         make(chan struct{}),
		settled:      make(map[int64]Event),
		waiters:      make(map[int64][]chan Event),
	}
}

// SubscribePayload is the message sent once the connection is open.
func (m *Manager) SubscribePayload() map[string]any {
	return map[string]any{
		"channel_patterns": []map[string]string{
			{
				"app_name":             m.appName,
				"address":              m.account.Hex(),
				"primary_identifier":   "*",
				"secondary_identifier": "*",
			},
		},
	}
}

// OnEvent registers fn for every parsed event. Handlers run on the read
// loop and must not block.
func (m *Manager) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Start dials the channel, subscribes and starts the read/ping loops
func (m *Manager) Start(ctx context.Context) error {
	wsURL, err := websocketURL(m.url)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to notification channel: %w", err)
	}

	data, err := json.Marshal(m.SubscribePayload())
	if err != nil {
		conn.CloseNow()
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		conn.CloseNow()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.conn = conn
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info().
		Str("url", wsURL).
		Str("app_name", m.appName).
		Str("account", m.account.Hex()).
		Msg("subscribed to notifications")

	m.wg.Add(2)
	go m.readLoop(loopCtx)
	go m.pingLoop(loopCtx)
	return nil
}

// Stop closes the connection and waits for the loops to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	conn, cancel := m.conn, m.cancel
	m.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "closing")
	cancel()
	m.wg.Wait()
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse notification URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported notification URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (m *Manager) readLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		_, data, err := m.conn.Read(ctx)
		if err != nil {
			m.finish(err)
			return
		}

		event, ok := ParseEvent(data)
		if !ok {
			m.logger.Debug().Str("message", truncate(string(data), 100)).Msg("ignoring notification")
			continue
		}
		m.logger.Debug().
			Int64("temp_quote_id", event.TempQuoteID).
			Int64("quote_id", event.QuoteID).
			Str("status", event.ActionStatus).
			Str("action", event.LastSeenAction).
			Msg("notification")
		m.dispatch(event)
	}
}

func (m *Manager) pingLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := m.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				m.logger.Warn().Err(err).Msg("notification ping failed")
				return
			}
		}
	}
}

// finish records why the read loop ended and releases every waiter.
func (m *Manager) finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		m.err = ErrClosed
	} else {
		m.err = fmt.Errorf("%w: %w", ErrClosed, err)
		m.logger.Warn().Err(err).Msg("notification read failed")
	}
	close(m.done)
}

func (m *Manager) dispatch(event Event) {
	m.mu.Lock()
	handlers := m.handlers
	var waiters []chan Event
	if event.terminal() {
		m.settled[event.TempQuoteID] = event
		waiters = m.waiters[event.TempQuoteID]
		delete(m.waiters, event.TempQuoteID)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(event)
	}
	for _, ch := range waiters {
		ch <- event
	}
}

// ParseEvent reads a notification. Messages without a data.temp_quote_id
// are not quote events.
func ParseEvent(raw []byte) (Event, bool) {
	if !gjson.ValidBytes(raw) {
		return Event{}, false
	}
	data := gjson.GetBytes(raw, "data")
	temp := data.Get("temp_quote_id")
	if !temp.Exists() || temp.Int() == 0 {
		return Event{}, false
	}
	return Event{
		TempQuoteID:    temp.Int(),
		QuoteID:        data.Get("quote_id").Int(),
		ActionStatus:   data.Get("action_status").String(),
		LastSeenAction: data.Get("last_seen_action").String(),
		Raw:            data.Raw,
	}, true
}

func (e Event) terminal() bool {
	return (e.ActionStatus == STATUS_SUCCESS && e.QuoteID > 0) || e.ActionStatus == STATUS_FAILED
}

// WaitForQuote blocks until the solver reports tempID as confirmed and
// returns its quote id. A failed status, the timeout, ctx or a closed
// channel end the wait with an error.
func (m *Manager) WaitForQuote(ctx context.Context, tempID int64) (int64, error) {
	ch := make(chan Event, 1)

	m.mu.Lock()
	event, ok := m.settled[tempID]
	if !ok {
		m.waiters[tempID] = append(m.waiters[tempID], ch)
	}
	m.mu.Unlock()

	if !ok {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()

		select {
		case event = <-ch:
		case <-timer.C:
			m.forget(tempID, ch)
			return 0, fmt.Errorf("%w: temp quote %d after %s", ErrTimeout, tempID, m.timeout)
		case <-ctx.Done():
			m.forget(tempID, ch)
			return 0, ctx.Err()
		case <-m.done:
			m.forget(tempID, ch)
			m.mu.RLock()
			defer m.mu.RUnlock()
			return 0, m.err
		}
	}

	if event.ActionStatus == STATUS_FAILED {
		return 0, fmt.Errorf("%w: temp quote %d: %s", ErrQuoteFailed, tempID, event.Raw)
	}
	m.logger.Info().
		Int64("temp_quote_id", tempID).
		Int64("quote_id", event.QuoteID).
		Msg("quote confirmed")
	return event.QuoteID, nil
}

func (m *Manager) forget(tempID int64, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiters := m.waiters[tempID]
	for i, w := range waiters {
		if w == ch {
			m.waiters[tempID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(m.waiters[tempID]) == 0 {
		delete(m.waiters, tempID)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
