package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"futures_bot/internal/domain"
	"futures_bot/internal/infra"

	"github.com/shopspring/decimal"
)

// Client is the Binance USDT-M futures REST client. It classifies
// failures into the error taxonomy (rejected vs transient) but does
// not retry; retry policy belongs to the submitter.
type Client struct {
	baseURL    string
	apiKey     string
	signer     *Signer
	httpClient *http.Client
	recvWindow int

	breaker       *infra.CircuitBreaker
	orderLimiter  *infra.RateLimiter
	marketLimiter *infra.RateLimiter
}

// NewClient creates a REST client from config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL:    cfg.API.Binance.BaseURL,
		apiKey:     cfg.API.Binance.APIKey,
		signer:     NewSigner(cfg.API.Binance.SecretKey),
		recvWindow: cfg.Trading.RecvWindowMS,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker:       infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("binance-rest")),
		orderLimiter:  infra.GetOrderLimiter(),
		marketLimiter: infra.GetMarketLimiter(),
	}
}

// Ping checks connectivity by fetching server time.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/time", nil, false, c.marketLimiter)
	if err != nil {
		return err
	}
	var resp serverTimeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse server time: %w", err)
	}
	slog.Debug("Exchange reachable", slog.Int64("server_time", resp.ServerTime))
	return nil
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	params := url.Values{}
	params.Set("symbol", spec.Symbol)
	params.Set("side", string(spec.Side))
	params.Set("type", string(spec.Type))
	params.Set("quantity", spec.Quantity.String())
	if spec.Price.IsPositive() {
		params.Set("price", spec.Price.String())
	}
	if spec.StopPrice.IsPositive() {
		params.Set("stopPrice", spec.StopPrice.String())
	}
	if spec.TimeInForce != "" {
		params.Set("timeInForce", string(spec.TimeInForce))
	}
	if spec.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if spec.WorkingType != "" {
		params.Set("workingType", string(spec.WorkingType))
	}
	if spec.ClientOrderID != "" {
		params.Set("newClientOrderId", spec.ClientOrderID)
	}

	body, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true, c.orderLimiter)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	return parseOrderResponse(body)
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	_, err := c.do(ctx, http.MethodDelete, "/fapi/v1/order", params, true, c.orderLimiter)
	return err
}

// CancelAllOpen cancels every open order on a symbol.
func (c *Client) CancelAllOpen(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, err := c.do(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true, c.orderLimiter)
	return err
}

// OrderStatus fetches the current state of an order.
func (c *Client) OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderRecord, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/order", params, true, c.orderLimiter)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	return parseOrderResponse(body)
}

// SymbolFilters fetches the precision rules for a symbol.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false, c.marketLimiter)
	if err != nil {
		return domain.PrecisionRules{}, err
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.PrecisionRules{}, fmt.Errorf("failed to parse exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := domain.PrecisionRules{Symbol: symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				rules.TickSize = parseDecimal(f.TickSize)
			case "LOT_SIZE":
				rules.StepSize = parseDecimal(f.StepSize)
				rules.MinQty = parseDecimal(f.MinQty)
			case "MIN_NOTIONAL":
				rules.MinNotional = parseDecimal(f.Notional)
			}
		}
		return rules, nil
	}
	return domain.PrecisionRules{}, domain.NewValidationError("symbol", "%s not found on exchange", symbol)
}

// MarkPrice fetches the current mark price for a symbol.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/premiumIndex", params, false, c.marketLimiter)
	if err != nil {
		return decimal.Zero, err
	}

	var resp premiumIndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse mark price: %w", err)
	}
	price, err := decimal.NewFromString(resp.MarkPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad mark price %q: %w", resp.MarkPrice, err)
	}
	return price, nil
}

// do executes one HTTP call. Signed requests get timestamp, recvWindow
// and signature appended. 5xx/429/network failures come back as
// TransientError; other non-2xx as OrderRejectedError carrying the
// exchange reason verbatim.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, signed bool, limiter *infra.RateLimiter) ([]byte, error) {
	op := method + " " + endpoint

	if !c.breaker.Allow() {
		return nil, &domain.TransientError{Op: op, Err: errors.New("circuit breaker open")}
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, &domain.TransientError{Op: op, Err: err}
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.Itoa(c.recvWindow))
		}
	}

	encoded := params.Encode()
	if signed {
		// Signature covers the exact query string sent, appended last.
		encoded += "&signature=" + c.signer.Sign(encoded)
	}

	reqURL := c.baseURL + endpoint
	if encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	slog.Debug("Exchange request", slog.String("op", op), slog.Bool("signed", signed))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &domain.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &domain.TransientError{Op: op, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.breaker.RecordSuccess()
		return body, nil
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
		return nil, &domain.TransientError{
			Op:  op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	// 4xx: the exchange understood us and said no. Not the breaker's
	// business and never retried.
	c.breaker.RecordSuccess()
	var apiErr apiError
	reason := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		reason = apiErr.Msg
	}
	return nil, &domain.OrderRejectedError{Op: op, Code: apiErr.Code, Reason: reason}
}

func parseOrderResponse(body []byte) (domain.OrderRecord, error) {
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("failed to parse order response: %w", err)
	}
	return domain.OrderRecord{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          domain.Side(resp.Side),
		Type:          domain.OrderType(resp.Type),
		Status:        domain.OrderStatus(resp.Status),
		Price:         parseDecimal(resp.Price),
		AvgPrice:      parseDecimal(resp.AvgPrice),
		OrigQty:       parseDecimal(resp.OrigQty),
		ExecutedQty:   parseDecimal(resp.ExecutedQty),
		UpdateTimeMS:  resp.UpdateTime,
	}, nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// IsUnknownOrder reports whether err is the exchange telling us the
// order no longer exists (already filled or already canceled).
func IsUnknownOrder(err error) bool {
	var rejected *domain.OrderRejectedError
	return errors.As(err, &rejected) && rejected.Code == codeUnknownOrder
}
