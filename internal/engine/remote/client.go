package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Garsondee/graph-arena/internal/engine"
)

// Client is an engine.Engine talking to a Handler. Calls are serialized.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	seq  uint64
}

// Dial connects to a websocket engine endpoint such as ws://host:port/engine.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", engine.ErrEngine, url, err)
	}
	return &Client{conn: conn}, nil
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) call(ctx context.Context, req request) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return response{}, engine.ErrClosed
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	c.seq++
	req.Seq = c.seq
	if err := c.conn.WriteJSON(req); err != nil {
		return response{}, c.broken(req.Op, err)
	}
	var resp response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return response{}, c.broken(req.Op, err)
	}
	if resp.Seq != req.Seq {
		return response{}, c.broken(req.Op, fmt.Errorf("response seq %d, want %d", resp.Seq, req.Seq))
	}
	if resp.Error != "" {
		if resp.Code == codeRejected {
			return resp, fmt.Errorf("%w: %s", engine.ErrRejected, resp.Error)
		}
		return resp, fmt.Errorf("%w: %s", engine.ErrEngine, resp.Error)
	}
	return resp, nil
}

// broken closes the connection after a transport failure; gorilla
// connections are unusable once a read or write has failed.
func (c *Client) broken(op string, err error) error {
	_ = c.conn.Close()
	c.conn = nil
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s: %v", engine.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", engine.ErrClosed, op, err)
}

func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	resp, err := c.call(ctx, request{Op: opSnapshot})
	return resp.Data, err
}

func (c *Client) GraphDefinition(ctx context.Context) ([]byte, error) {
	resp, err := c.call(ctx, request{Op: opGraph})
	return resp.Data, err
}

func (c *Client) Start(ctx context.Context) error {
	_, err := c.call(ctx, request{Op: opStart})
	return err
}

func (c *Client) Advance(ctx context.Context) error {
	_, err := c.call(ctx, request{Op: opAdvance})
	return err
}

func (c *Client) Active(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, request{Op: opActive})
	return resp.Active, err
}

func (c *Client) MoveAgent(ctx context.Context, agentID, node int) error {
	_, err := c.call(ctx, request{Op: opMove, Agent: agentID, Node: node})
	return err
}

func (c *Client) SpawnAgent(ctx context.Context, node int) (int, error) {
	resp, err := c.call(ctx, request{Op: opSpawn, Node: node})
	return resp.ID, err
}
