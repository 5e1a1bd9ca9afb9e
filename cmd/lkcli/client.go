package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// wsClient is a minimal synchronous request/response helper over wsapi's
// protocol: one call, one answer, no concurrent in-flight requests — all
// lkcli needs.
type wsClient struct {
	conn    *websocket.Conn
	nextID  uint64
	timeout time.Duration
}

func dial(host string) (*wsClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+host, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", host, err)
	}
	return &wsClient{conn: conn, timeout: 10 * time.Second}, nil
}

func (c *wsClient) Close() { c.conn.Close() }

type wsRequest struct {
	ID      uint64      `json:"id"`
	Version uint64      `json:"version"`
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Args    interface{} `json:"args"`
}

type wsResponse struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
}

// Call sends a "call" request and waits for the single matching answer.
func (c *wsClient) Call(name string, args interface{}, out interface{}) error {
	c.nextID++
	id := c.nextID
	req := wsRequest{ID: id, Version: 1, Type: "call", Name: name, Args: args}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	var resp wsResponse
	if err := c.conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("server error: %s", string(resp.Result))
	}
	if out != nil {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

// Subscribe sends a "subscribe" request and returns a channel delivering
// every pushed answer until the connection is closed.
func (c *wsClient) Subscribe(name string, args interface{}) (<-chan wsResponse, error) {
	c.nextID++
	req := wsRequest{ID: c.nextID, Version: 1, Type: "subscribe", Name: name, Args: args}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	out := make(chan wsResponse, 8)
	go func() {
		defer close(out)
		for {
			var resp wsResponse
			if err := c.conn.ReadJSON(&resp); err != nil {
				return
			}
			out <- resp
		}
	}()
	return out, nil
}
