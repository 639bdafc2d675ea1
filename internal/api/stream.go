package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/tradermind/internal/types"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

// handleStatusStream handles GET /api/run/status/stream. It pushes a status
// snapshot every stream interval until the run reaches a terminal state or
// the client goes away. An idle coordinator gets one snapshot.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))

		return
	}
	defer conn.Close()

	// reading is only needed to notice the client closing the connection
	gone := make(chan struct{})

	go func() {
		defer close(gone)

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		state := s.coord.GetStatus()

		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return
		}

		if err := conn.WriteJSON(state); err != nil {
			s.logger.Debug("Status stream closed", zap.Error(err))

			return
		}

		if !state.Status.IsActive() {
			s.closeStream(conn, state.Status)

			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) closeStream(conn *websocket.Conn, status types.JobStatus) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status))
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout)); err != nil {
		s.logger.Debug("Failed to close status stream", zap.Error(err))
	}
}
