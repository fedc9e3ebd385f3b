package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/logging"
)

type WebChatAdapter struct {
	port     int
	incoming *channel.Inbox
	upgrader websocket.Upgrader
	conns    map[string]*websocket.Conn
	connMux  sync.RWMutex
	writeMux sync.Mutex
	stopOnce sync.Once
	mux      *http.ServeMux
	logger   *slog.Logger
}

type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	UserID  string `json:"user_id,omitempty"`
}

func NewWebChatAdapter(port int) *WebChatAdapter {
	w := &WebChatAdapter{
		port:     port,
		incoming: channel.NewInbox(100),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(map[string]*websocket.Conn),
		mux:    http.NewServeMux(),
		logger: logging.WithComponent("webchat"),
	}
	w.mux.HandleFunc("/ws", w.wsHandler)
	return w
}

func (w *WebChatAdapter) Name() string {
	return "webchat"
}

func (w *WebChatAdapter) IsEnabled() bool {
	return w.port > 0
}

// Handler exposes the websocket endpoint for embedding and tests.
func (w *WebChatAdapter) Handler() http.Handler {
	return w.mux
}

func (w *WebChatAdapter) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(w.port),
		Handler:           w.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		w.logger.Info("webchat listening", "port", w.port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("webchat server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	return nil
}

func (w *WebChatAdapter) Stop() error {
	w.stopOnce.Do(func() {
		w.incoming.Close()
		w.connMux.Lock()
		for id, conn := range w.conns {
			conn.Close()
			delete(w.conns, id)
		}
		w.connMux.Unlock()
	})
	return nil
}

func (w *WebChatAdapter) SendMessage(userID string, resp *channel.Response) error {
	w.connMux.RLock()
	conn, exists := w.conns[userID]
	w.connMux.RUnlock()

	if !exists {
		return nil // user went away
	}

	msg := WSMessage{
		Type:    "message",
		Content: resp.Content,
		UserID:  userID,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	w.writeMux.Lock()
	defer w.writeMux.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebChatAdapter) Incoming() <-chan *channel.Message {
	return w.incoming.C()
}

func (w *WebChatAdapter) wsHandler(rw http.ResponseWriter, r *http.Request) {
	if w.incoming.Closed() {
		http.Error(rw, "webchat stopped", http.StatusServiceUnavailable)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous_" + uuid.NewString()
	}

	w.connMux.Lock()
	if w.incoming.Closed() {
		w.connMux.Unlock()
		conn.Close()
		return
	}
	w.conns[userID] = conn
	w.connMux.Unlock()

	defer func() {
		w.connMux.Lock()
		delete(w.conns, userID)
		w.connMux.Unlock()
		conn.Close()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Debug("websocket read ended", "user_id", userID, "error", err)
			}
			return
		}
		if msg.Type != "message" {
			continue
		}

		message := &channel.Message{
			ID:        uuid.NewString(),
			Channel:   "webchat",
			UserID:    userID,
			Content:   msg.Content,
			Metadata:  map[string]string{"connection_id": userID},
			Timestamp: time.Now().Unix(),
		}
		if !w.incoming.Deliver(r.Context(), message) {
			return
		}
	}
}
