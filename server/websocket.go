package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is one websocket frame. Type is "status", "answer", "sources" or
// "error"; Data carries the sources list on "sources" frames.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// handleWebSocket runs a chat loop: each incoming text frame is a question,
// answered with a status frame, an answer frame and a sources frame.
// Errors come back as error frames; only read failures end the session.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return nil
		}

		question := string(raw)
		if question == "" {
			s.send(conn, Message{Type: "error", Content: "question is required"})
			continue
		}

		s.send(conn, Message{Type: "status", Content: "Retrieving context..."})

		resp, err := s.pipeline.Query(ctx, models.QueryRequest{Question: question})
		if err != nil {
			s.send(conn, Message{Type: "error", Content: err.Error()})
			continue
		}

		s.send(conn, Message{Type: "answer", Content: resp.Answer})
		s.send(conn, Message{Type: "sources", Data: resp.Sources})
	}
}

func (s *Server) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}
