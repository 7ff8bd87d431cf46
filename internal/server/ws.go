package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/lottoscan/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 10 * time.Second

// ProgressSocket pushes bus events to websocket clients.
type ProgressSocket struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewProgressSocket creates a new websocket progress handler.
func NewProgressSocket(eventBus *events.Bus, log zerolog.Logger) *ProgressSocket {
	return &ProgressSocket{
		eventBus: eventBus,
		log:      log.With().Str("component", "progress_socket").Logger(),
	}
}

// ServeHTTP handles GET /api/ws/progress. Clients only receive; any
// message they send is discarded.
func (p *ProgressSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventChan, unsubscribe := subscribe(p.eventBus, parseTypes(r.URL.Query().Get("types")), p.log)
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// CloseRead drains client frames and cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	p.log.Info().Msg("Websocket client connected")
	if err := p.write(ctx, conn, map[string]interface{}{"type": "connected"}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Websocket client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := p.write(ctx, conn, wireEvent(event)); err != nil {
				p.log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
}

func (p *ProgressSocket) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}
