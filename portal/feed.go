package portal

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/store"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{ //nolint:gochecknoglobals
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// feedHandler upgrades the request to a websocket and writes the presented campaign list, as a JSON array, every
// time it changes. The first list is the current one.
func (p *Portal) feedHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Warn("cannot upgrade feed connection", zap.String("from", r.RemoteAddr), zap.Error(err))

		return
	}

	logger.Info("feed connected", zap.String("from", r.RemoteAddr))

	// only the observer writes to conn
	unsubscribe := p.l.Subscribe(func(cs []store.Campaign) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

		if err := conn.WriteJSON(cs); err != nil {
			logger.Debug("feed write", zap.String("from", r.RemoteAddr), zap.Error(err))
			_ = conn.Close()
		}
	})

	// clients do not send anything, reading detects them leaving
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	_ = conn.Close()

	logger.Info("feed disconnected", zap.String("from", r.RemoteAddr))
}
