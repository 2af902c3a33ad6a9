package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
)

// DefaultWSBaseURL is the Binance combined-stream websocket endpoint.
const DefaultWSBaseURL = "wss://stream.binance.com:9443"

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsMaxBackoff       = time.Minute
)

// KlineHandler receives one closed candle per invocation.
type KlineHandler func(symbol string, c domain.Candle)

// KlineStreamer subscribes to Binance combined kline streams and delivers
// closed candles to a handler. It reconnects forever with exponential
// backoff until the context is cancelled.
type KlineStreamer struct {
	baseURL  string
	symbols  []string
	interval string
	handler  KlineHandler

	metrics *observability.Metrics
	logger  *log.Logger
}

// NewKlineStreamer creates a streamer. baseURL may be empty for the
// production endpoint; logger may be nil.
func NewKlineStreamer(baseURL string, symbols []string, interval string, handler KlineHandler, metrics *observability.Metrics, logger *log.Logger) *KlineStreamer {
	if baseURL == "" {
		baseURL = DefaultWSBaseURL
	}
	return &KlineStreamer{
		baseURL:  baseURL,
		symbols:  symbols,
		interval: interval,
		handler:  handler,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, reconnecting on any read failure.
func (s *KlineStreamer) Run(ctx context.Context) {
	url := s.streamURL()
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.logf("connecting to %s", url)
		dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			s.logf("dial failed: %v", err)
			s.metrics.RecordIngestError("ws_dial")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if err := s.readLoop(ctx, conn); err != nil {
			s.logf("stream closed: %v", err)
			s.metrics.RecordIngestError("ws_read")
		}
		conn.Close()
	}
}

func (s *KlineStreamer) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		start := time.Now()

		var env klineEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logf("bad kline payload: %v", err)
			s.metrics.RecordIngestError("ws_decode")
			continue
		}
		if env.Data.EventType != "kline" || !env.Data.Kline.Closed {
			continue
		}

		c := env.Data.Kline.candle()
		if !c.Valid() {
			s.metrics.RecordIngestError("ws_invalid_candle")
			continue
		}

		s.handler(env.Data.Symbol, c)
		s.metrics.RecordCandles(env.Data.Symbol, 1)
		if s.metrics != nil {
			s.metrics.WSMessageLatency.Observe(time.Since(start).Seconds())
		}
	}
}

// streamURL builds the combined-stream URL, e.g.
// wss://.../stream?streams=btcusdt@kline_1h/ethusdt@kline_1h
func (s *KlineStreamer) streamURL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.interval)
	}
	return s.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

func (s *KlineStreamer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > wsMaxBackoff {
		return wsMaxBackoff
	}
	return next
}

type klineEnvelope struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	EventType string    `json:"e"`
	EventTime int64     `json:"E"`
	Symbol    string    `json:"s"`
	Kline     wireKline `json:"k"`
}

type wireKline struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

func (k *wireKline) candle() domain.Candle {
	return domain.Candle{
		OpenTime: k.OpenTime,
		Open:     asFloat(k.Open),
		High:     asFloat(k.High),
		Low:      asFloat(k.Low),
		Close:    asFloat(k.Close),
		Volume:   asFloat(k.Volume),
	}
}
