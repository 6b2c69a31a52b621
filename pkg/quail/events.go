package quail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// SubscribeBacktests streams the caller's backtest events until ctx ends or
// the connection drops, at which point the channel is closed
func (c *Client) SubscribeBacktests(ctx context.Context) (<-chan BacktestEvent, error) {
	token := c.Tokens().AccessToken
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	endpoint, err := url.Parse(c.baseURL + "/ws/backtests")
	if err != nil {
		return nil, err
	}
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(resp.Status)}
		}
		return nil, fmt.Errorf("quail: websocket dial: %w", err)
	}

	events := make(chan BacktestEvent)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()

		for {
			var ev BacktestEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
