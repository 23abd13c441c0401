package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"rentalchain/core/events"
	"rentalchain/observability"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams the events of sealed blocks. Clients resume with
// ?cursor=<sequence> and may narrow the stream with ?type=<event type>.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	observability.RPC().StreamOpened()
	defer observability.RPC().StreamClosed()
	// the stream is write-only; CloseRead surfaces client disconnects
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", slog.String("error", err.Error()))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor, filter string) error {
	updates, cancel, backlog := s.node.Chain().Feed().Subscribe(ctx, cursor)
	defer cancel()

	for _, entry := range backlog {
		if err := writeSealed(ctx, conn, entry, filter); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeSealed(ctx, conn, entry, filter); err != nil {
				return err
			}
		}
	}
}

func writeSealed(ctx context.Context, conn *websocket.Conn, entry events.Sealed, filter string) error {
	if filter != "" && (entry.Event == nil || entry.Event.Type != filter) {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
