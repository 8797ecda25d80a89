package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Garsondee/graph-arena/internal/engine"
)

// Handler serves one engine to websocket clients.
type Handler struct {
	eng      engine.Engine
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler wraps eng. A nil logger discards output.
func NewHandler(eng engine.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		eng: eng,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and answers requests until the client
// goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()
	h.log.Info("engine client connected", "remote", r.RemoteAddr)

	ctx := r.Context()
	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("engine client read failed", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		resp := h.dispatch(ctx, req)
		if err := conn.WriteJSON(resp); err != nil {
			h.log.Warn("engine client write failed", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, req request) response {
	resp := response{Seq: req.Seq}
	var err error
	switch req.Op {
	case opSnapshot:
		var data []byte
		data, err = h.eng.Snapshot(ctx)
		resp.Data = json.RawMessage(data)
	case opGraph:
		var data []byte
		data, err = h.eng.GraphDefinition(ctx)
		resp.Data = json.RawMessage(data)
	case opStart:
		err = h.eng.Start(ctx)
	case opAdvance:
		err = h.eng.Advance(ctx)
	case opActive:
		resp.Active, err = h.eng.Active(ctx)
	case opMove:
		err = h.eng.MoveAgent(ctx, req.Agent, req.Node)
	case opSpawn:
		resp.ID, err = h.eng.SpawnAgent(ctx, req.Node)
	default:
		err = fmt.Errorf("%w: unknown op %q", engine.ErrRejected, req.Op)
	}
	if err != nil {
		resp.Data = nil
		resp.Error = err.Error()
		if errors.Is(err, engine.ErrRejected) {
			resp.Code = codeRejected
		}
		h.log.Debug("engine request failed", "op", req.Op, "err", err)
	}
	return resp
}
