package exchange

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	markPriceReadTimeout = 90 * time.Second
	markPriceMaxRetries  = 10
)

// MarkPriceWorker streams <symbol>@markPrice updates over WebSocket
// with automatic reconnection. Used by the price subcommand; order
// strategies use the REST MarkPrice snapshot instead.
type MarkPriceWorker struct {
	streamURL string
	symbol    string
	onUpdate  func(decimal.Decimal)

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMarkPriceWorker creates a worker for one symbol.
// onUpdate is called on every mark price event.
func NewMarkPriceWorker(streamURL, symbol string, onUpdate func(decimal.Decimal)) *MarkPriceWorker {
	return &MarkPriceWorker{
		streamURL: streamURL,
		symbol:    symbol,
		onUpdate:  onUpdate,
	}
}

// Connect starts the connection loop in the background.
func (w *MarkPriceWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

func (w *MarkPriceWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Mark price worker panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Mark price connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			slog.Warn("Mark price connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := time.Duration(1<<uint(min(retryCount, 5))) * time.Second
			retryCount++
			if retryCount > markPriceMaxRetries {
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *MarkPriceWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	streamPath := fmt.Sprintf("%s/%s@markPrice@1s", w.streamURL, strings.ToLower(w.symbol))
	conn, _, err := dialer.DialContext(ctx, streamPath, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Mark price stream connected", slog.String("symbol", w.symbol))
	return nil
}

func (w *MarkPriceWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(markPriceReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Mark price read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

func (w *MarkPriceWorker) handleMessage(message []byte) {
	var ev markPriceEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return
	}
	if ev.EventType != "markPriceUpdate" {
		return
	}

	price, err := decimal.NewFromString(ev.MarkPrice)
	if err != nil {
		return
	}
	if w.onUpdate != nil {
		w.onUpdate(price)
	}
}

func (w *MarkPriceWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect closes the connection and stops the loop.
func (w *MarkPriceWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Mark price stream disconnected", slog.String("symbol", w.symbol))
}

// IsConnected returns connection status.
func (w *MarkPriceWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
