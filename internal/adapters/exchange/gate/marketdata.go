package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"arbiflow/internal/domain/models"
)

// tickerResponse is the REST ticker envelope
type tickerResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []tickerData `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

type tickerData struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	Bid1Price    string `json:"bid1Price"`
	Bid1Size     string `json:"bid1Size"`
	Ask1Price    string `json:"ask1Price"`
	Ask1Size     string `json:"ask1Size"`
	Volume24h    string `json:"volume24h"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
	Price24hPcnt string `json:"price24hPcnt"`
}

// streamMessage is the websocket push envelope
type streamMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Ts    int64           `json:"ts"`
	Op    string          `json:"op"`
}

type streamBookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

// FetchTick performs one blocking ticker request. The ingestion loop drives
// this once per symbol per cycle; LatestTick serves every other caller.
func (c *Connector) FetchTick(ctx context.Context, symbol string) (models.TickSnapshot, error) {
	if !c.IsConnected() {
		return models.TickSnapshot{}, fmt.Errorf("%s not connected", c.name)
	}
	if !c.limiter.TryAcquire() {
		return models.TickSnapshot{}, fmt.Errorf("rate budget exhausted on %s", c.name)
	}

	query := url.Values{}
	query.Set("category", spotCategory)
	query.Set("symbol", symbol)

	body, err := c.publicRequest(ctx, tickersEndpoint, query.Encode())
	if err != nil {
		return models.TickSnapshot{}, err
	}

	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.TickSnapshot{}, fmt.Errorf("malformed ticker response: %w", err)
	}
	if resp.RetCode != 0 {
		return models.TickSnapshot{}, fmt.Errorf("ticker request rejected: %s", resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return models.TickSnapshot{}, fmt.Errorf("no ticker data for %s", symbol)
	}

	tick := c.toSnapshot(resp.Result.List[0], time.UnixMilli(resp.Time))

	c.mu.Lock()
	c.ticks[symbol] = tick
	c.mu.Unlock()

	return tick, nil
}

// toSnapshot converts a venue ticker payload into the domain snapshot.
// Bid and ask are stored exactly as reported; crossed books stay crossed.
func (c *Connector) toSnapshot(data tickerData, eventTime time.Time) models.TickSnapshot {
	return models.TickSnapshot{
		Symbol:     data.Symbol,
		Exchange:   c.name,
		Last:       parseFloat(data.LastPrice),
		Bid:        parseFloat(data.Bid1Price),
		Ask:        parseFloat(data.Ask1Price),
		BidQty:     parseFloat(data.Bid1Size),
		AskQty:     parseFloat(data.Ask1Size),
		Volume24h:  parseFloat(data.Volume24h),
		High24h:    parseFloat(data.HighPrice24h),
		Low24h:     parseFloat(data.LowPrice24h),
		Change24h:  parseFloat(data.Price24hPcnt) * 100,
		EventTime:  eventTime,
		ReceivedAt: time.Now(),
	}
}

// openStream dials the websocket, replays current subscriptions and starts
// the reader/processor pair around the ring buffer.
func (c *Connector) openStream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.wsConn = conn
	c.streamStop = cancel
	args := make([]string, 0, len(c.subs)+len(c.bookSubs)+len(c.tradeSubs))
	for symbol := range c.subs {
		args = append(args, "tickers."+symbol)
	}
	for symbol, depth := range c.bookSubs {
		args = append(args, fmt.Sprintf("orderbook.%d.%s", depth, symbol))
	}
	for symbol := range c.tradeSubs {
		args = append(args, "publicTrade."+symbol)
	}
	c.mu.Unlock()

	if len(args) > 0 {
		if err := c.sendSubscribe(conn, args); err != nil {
			cancel()
			conn.Close()
			return err
		}
	}

	c.streamWG.Add(2)
	go c.readStream(streamCtx, conn)
	go c.processStream(streamCtx)
	return nil
}

// sendSubscribe sends one subscribe op for the given topic args
func (c *Connector) sendSubscribe(conn *websocket.Conn, args []string) error {
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe on %s: %w", c.name, err)
	}
	return nil
}

// readStream is the single producer of the ring buffer. It only reads frames
// and pushes them; a full buffer drops the frame so the socket is never
// stalled behind a slow consumer.
func (c *Connector) readStream(ctx context.Context, conn *websocket.Conn) {
	defer c.streamWG.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.emitError(c.name+":stream", fmt.Sprintf("websocket read: %v", err))
			}
			return
		}

		if !c.ring.Push(frame) {
			c.mu.Lock()
			c.dropped++
			dropped := c.dropped
			c.mu.Unlock()
			c.logger.Debug("Stream buffer full, frame dropped", "exchange", c.name, "dropped_total", dropped)
			continue
		}

		select {
		case c.frameReady <- struct{}{}:
		default:
		}
	}
}

// processStream is the single consumer of the ring buffer
func (c *Connector) processStream(ctx context.Context) {
	defer c.streamWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.frameReady:
			for {
				frame, ok := c.ring.Pop()
				if !ok {
					break
				}
				c.handleFrame(frame)
			}
		}
	}
}

// handleFrame parses one streamed frame and routes it by topic
func (c *Connector) handleFrame(frame []byte) {
	var msg streamMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.emitError(c.name+":stream", fmt.Sprintf("malformed frame: %v", err))
		return
	}
	if msg.Op != "" || msg.Topic == "" {
		// Subscription acks and pings carry no market data.
		return
	}

	switch {
	case strings.HasPrefix(msg.Topic, "tickers."):
		c.handleTickerFrame(msg)
	case strings.HasPrefix(msg.Topic, "orderbook."):
		c.handleBookFrame(msg)
	}
}

func (c *Connector) handleTickerFrame(msg streamMessage) {
	var data tickerData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.emitError(c.name+":stream", fmt.Sprintf("malformed ticker frame: %v", err))
		return
	}
	if data.Symbol == "" {
		return
	}

	tick := c.toSnapshot(data, time.UnixMilli(msg.Ts))

	c.mu.Lock()
	// Delta frames may omit fields; keep the previous values for those.
	if prev, ok := c.ticks[data.Symbol]; ok && msg.Type == "delta" {
		mergeSnapshot(&tick, prev)
	}
	c.ticks[data.Symbol] = tick
	c.mu.Unlock()

	c.emitTick(tick)
}

func (c *Connector) handleBookFrame(msg streamMessage) {
	var data streamBookData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.emitError(c.name+":stream", fmt.Sprintf("malformed book frame: %v", err))
		return
	}
	if data.Symbol == "" {
		return
	}

	now := time.Now()
	book := models.OrderBookSnapshot{
		Symbol:     data.Symbol,
		Exchange:   c.name,
		Bids:       toLevels(data.Bids),
		Asks:       toLevels(data.Asks),
		EventTime:  time.UnixMilli(msg.Ts),
		ReceivedAt: now,
	}

	c.mu.Lock()
	c.books[data.Symbol] = book
	c.mu.Unlock()
}

func toLevels(raw [][]string) []models.BookLevel {
	levels := make([]models.BookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		levels = append(levels, models.BookLevel{
			Price:    parseFloat(entry[0]),
			Quantity: parseFloat(entry[1]),
		})
	}
	return levels
}

// mergeSnapshot fills zero fields of tick from the previous snapshot
func mergeSnapshot(tick *models.TickSnapshot, prev models.TickSnapshot) {
	if tick.Last == 0 {
		tick.Last = prev.Last
	}
	if tick.Bid == 0 {
		tick.Bid = prev.Bid
		tick.BidQty = prev.BidQty
	}
	if tick.Ask == 0 {
		tick.Ask = prev.Ask
		tick.AskQty = prev.AskQty
	}
	if tick.Volume24h == 0 {
		tick.Volume24h = prev.Volume24h
	}
	if tick.High24h == 0 {
		tick.High24h = prev.High24h
	}
	if tick.Low24h == 0 {
		tick.Low24h = prev.Low24h
	}
}
