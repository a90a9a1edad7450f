package presence

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"MuseShare/logger"
	"MuseShare/tools/ids"
	"MuseShare/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	readLimit    = 1 << 20 // 1MB
	readDeadline = 60 * time.Second
	pingEvery    = 30 * time.Second
)

// HandleWS upgrades the connection and runs the client event loop:
// authenticate / joinConversation / leaveConversation / typing. The read
// loop only reads; deliveries go through the per-conn write lock.
func (m *Manager) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	conn := &Conn{ID: ids.GenerateString(), ws: ws}
	defer func() {
		// the socket dropping must not cancel durable presence cleanup
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Disconnect(ctx, conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	stop := make(chan struct{})
	defer close(stop)
	safe.Go(func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				conn.mu.Lock()
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				conn.mu.Unlock()
			}
		}
	})

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", conn.ID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s", conn.ID)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", conn.ID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			logger.Infof("[ws] bad frame conn=%s err=%v len=%d", conn.ID, perr, len(data))
			continue
		}
		m.dispatch(conn, frame)
	}
}

func (m *Manager) dispatch(conn *Conn, frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch frame.Event {
	case EventAuthenticate:
		var userID string
		if err := json.Unmarshal(frame.Data, &userID); err != nil || userID == "" {
			logger.Infof("[ws] authenticate bad payload conn=%s", conn.ID)
			return
		}
		m.Authenticate(conn, userID)
		logger.Infof("[ws] conn=%s authenticated as user=%s", conn.ID, userID)

	case EventJoinConversation:
		var conversationID string
		if err := json.Unmarshal(frame.Data, &conversationID); err != nil {
			return
		}
		if err := m.JoinConversation(ctx, conn, conversationID); err != nil {
			logger.Warnf("[ws] join conv=%s user=%s err=%v", conversationID, conn.UserID, err)
		}

	case EventLeaveConversation:
		var conversationID string
		if err := json.Unmarshal(frame.Data, &conversationID); err != nil {
			return
		}
		if err := m.LeaveConversation(ctx, conn, conversationID); err != nil {
			logger.Warnf("[ws] leave conv=%s user=%s err=%v", conversationID, conn.UserID, err)
		}

	case EventTyping:
		// stateless relay to the other members of the channel
		var conversationID string
		if err := json.Unmarshal(frame.Data, &conversationID); err != nil || conn.UserID == "" {
			return
		}
		m.SendToConversation(conversationID, EventTyping, gin.H{
			"conversationId": conversationID,
			"userId":         conn.UserID,
		}, conn.UserID)

	default:
		logger.Infof("[ws] no handler for event=%s conn=%s", frame.Event, conn.ID)
	}
}
