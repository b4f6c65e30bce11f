package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mozilla/clouseau/internal/config"
	"github.com/mozilla/clouseau/internal/middleware"
	"github.com/mozilla/clouseau/internal/ws"
	"github.com/mozilla/clouseau/pkg/logger"
)

// WSHandler upgrades browsers to a socket that receives view change pushes
type WSHandler struct {
	hub            *ws.Hub
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. allowedOrigins is comma separated;
// empty allows any origin.
func NewWSHandler(hub *ws.Hub, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		allowedOrigins: config.SplitAndTrim(allowedOrigins, ","),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	// the dashboard page itself connects from its own host
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Connect handles GET /ws, upgrading to a push socket for the caller's session
func (h *WSHandler) Connect(c *gin.Context) {
	sid := middleware.SessionID(c)
	if sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.GetLogger().Debug().Err(err).Str("session_id", sid).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, sid)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
