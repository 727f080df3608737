package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// ProgressSocket pushes job snapshots to browsers over WebSocket
type ProgressSocket struct {
	jobs     JobManager
	upgrader websocket.Upgrader
	recorder Recorder
	logger   *slog.Logger
}

// NewProgressSocket creates a new progress WebSocket handler
func NewProgressSocket(jobs JobManager, recorder Recorder, logger *slog.Logger) *ProgressSocket {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressSocket{
		jobs: jobs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		recorder: recorder,
		logger:   logger.With("component", "websocket"),
	}
}

// HandleProgress upgrades the connection and streams every job update.
// The active job, if any, is sent first.
func (ps *ProgressSocket) HandleProgress(c echo.Context) error {
	ws, err := ps.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ps.recorder.ClientConnected()
	defer ps.recorder.ClientDisconnected()
	ps.logger.Debug("client connected", "remote", c.RealIP())

	updates, unsubscribe := ps.jobs.Subscribe()
	defer unsubscribe()

	// Reader: only needed to process control frames and notice disconnects.
	closed := make(chan struct{})
	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if job, ok := ps.jobs.ActiveJob(); ok {
		ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(job); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			ps.logger.Debug("client disconnected", "remote", c.RealIP())
			return nil

		case job, ok := <-updates:
			if !ok {
				return nil
			}
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(job); err != nil {
				return nil
			}

		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
