package restarter

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// followOutput streams OutputLine JSON frames for every job until the peer
// goes away.
func (s *server) followOutput(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "output streaming not available"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("output ws upgrade", "error", err)
		return
	}
	defer conn.Close()

	lines := make(chan any, 256)
	unsubscribe, err := s.bus.Subscribe(TopicOutput, lines)
	if err != nil {
		s.logger.Error("output ws subscribe", "error", err)
		return
	}
	defer unsubscribe()

	// The reader only exists to notice the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case payload := <-lines:
			line, ok := payload.(OutputLine)
			if !ok {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(line); err != nil {
				return
			}
		}
	}
}
