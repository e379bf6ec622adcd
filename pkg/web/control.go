package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/teslashibe/go-assistant/pkg/protocol"
	"github.com/teslashibe/go-assistant/pkg/tools"
)

// commandTimeout bounds one control command.
const commandTimeout = 60 * time.Second

// controlConn is one /ws/control client. Writes are serialized.
type controlConn struct {
	id        string
	conn      *websocket.Conn
	connected time.Time

	mu sync.Mutex
}

func (c *controlConn) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// controlHub tracks command connections.
type controlHub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*controlConn
}

func newControlHub(logger *slog.Logger) *controlHub {
	return &controlHub{
		logger: logger.With("hub", "control"),
		conns:  make(map[string]*controlConn),
	}
}

func (h *controlHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *controlHub) handler(s *Server) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		id, err := gonanoid.New(8)
		if err != nil {
			c.Close()
			return
		}
		cc := &controlConn{id: id, conn: c, connected: time.Now()}

		h.mu.Lock()
		h.conns[id] = cc
		n := len(h.conns)
		h.mu.Unlock()
		h.logger.Info("control client connected", "client", id, "clients", n)

		defer func() {
			h.mu.Lock()
			delete(h.conns, id)
			n := len(h.conns)
			h.mu.Unlock()
			h.logger.Info("control client disconnected", "client", id, "clients", n)
		}()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}

			var reply *protocol.Message
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				reply = protocol.NewErrorMessage("", "", err)
			} else {
				reply = s.dispatch(s.baseCtx, msg)
			}

			if err := cc.send(reply); err != nil {
				h.logger.Warn("control write failed", "client", id, "error", err)
				return
			}
		}
	})
}

// errUnknownCommand is returned for message types the UI may not send.
var errUnknownCommand = errors.New("unknown command")

// dispatch runs one command and builds its reply.
func (s *Server) dispatch(ctx context.Context, msg *protocol.Message) *protocol.Message {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	value, err := s.command(ctx, msg)
	if err != nil {
		return protocol.NewErrorMessage(msg.ID, msg.Type, err)
	}
	if msg.Type == protocol.TypePing {
		ping, _ := msg.GetPingData()
		ts := msg.Timestamp
		if ping != nil && ping.Timestamp != 0 {
			ts = ping.Timestamp
		}
		return protocol.NewPongMessage(msg.ID, ts)
	}

	reply, err := protocol.NewResultMessage(msg.ID, msg.Type, value)
	if err != nil {
		return protocol.NewErrorMessage(msg.ID, msg.Type, err)
	}
	return reply
}

func (s *Server) command(ctx context.Context, msg *protocol.Message) (any, error) {
	sess := s.deps.Session

	switch msg.Type {
	case protocol.TypeClear:
		sess.Clear()
		return sess.Status(), nil

	case protocol.TypeRestart:
		sess.Restart()
		return sess.Status(), nil

	case protocol.TypeToggleTools:
		return sess.ToggleTools(), nil

	case protocol.TypeTool:
		cmd, err := msg.GetToolCommand()
		if err != nil {
			return nil, fmt.Errorf("invalid tool command: %w", err)
		}
		if cmd.Name == "" {
			return nil, errors.New("tool name is required")
		}
		return sess.InvokeTool(ctx, cmd.Name, tools.Args(cmd.Args)), nil

	case protocol.TypeExport:
		return sess.Export(ctx)

	case protocol.TypeStatus:
		return s.status(), nil

	case protocol.TypePing:
		return nil, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownCommand, msg.Type)
}
