// Package progress streams upload progress to websocket clients. Hub is
// plugged into the coordinators as a chunked.Hooks implementation.
package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-uuid"
	"github.com/labstack/echo/v4"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Hub struct {
	chunked.NoopHooks
	cache           *UploadProgressCache
	expirationDelta time.Duration

	mu              sync.RWMutex
	clients         map[string]*Client
	clientsByUserID map[int][]*Client
}

// NewHub builds a hub whose cached progress entries expire with their
// uploads, expirationDelta after they were created.
func NewHub(cache *UploadProgressCache, expirationDelta time.Duration) *Hub {
	return &Hub{
		cache:           cache,
		expirationDelta: expirationDelta,
		clients:         make(map[string]*Client),
		clientsByUserID: make(map[int][]*Client),
	}
}

// ServeWS upgrades the request and streams progress for the calling user's
// uploads. It expects the user to have been set by the API key middleware.
func (h *Hub) ServeWS(ctx echo.Context) error {
	user, ok := ctx.Get("user").(*mcmodel.User)
	if !ok || user == nil {
		return ctx.JSON(http.StatusForbidden, chunked.ErrNotAuthenticated().Fields())
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		log.Errorf("Websocket upgrade failed: %s", err)
		return nil
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		_ = conn.Close()
		return err
	}

	client := &Client{
		ID:     id,
		UserID: user.ID,
		conn:   conn,
		send:   make(chan Message, 64),
		hub:    h,
	}

	h.register(client)

	client.send <- Message{
		Command:   MsgConnected,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"uploads": h.cache.ForUser(user.ID)},
	}

	go client.writePump()
	go client.readPump()

	return nil
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.clientsByUserID[client.UserID] = append(h.clientsByUserID[client.UserID], client)
	log.Debugf("Progress client %s registered for user %d", client.ID, client.UserID)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	delete(h.clients, client.ID)
	close(client.send)

	userClients := h.clientsByUserID[client.UserID]
	for i, c := range userClients {
		if c.ID == client.ID {
			h.clientsByUserID[client.UserID] = append(userClients[:i], userClients[i+1:]...)
			break
		}
	}

	if len(h.clientsByUserID[client.UserID]) == 0 {
		delete(h.clientsByUserID, client.UserID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastToUser(userID int, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clientsByUserID[userID] {
		select {
		case client.send <- msg:
		default:
			log.Warnf("Could not send to progress client %s (channel full)", client.ID)
		}
	}
}

// OnChunkPersisted records and broadcasts the new offset. Anonymous uploads
// have nobody to send to.
func (h *Hub) OnChunkPersisted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	if upload.OwnerID == nil {
		return
	}

	progress := UploadProgress{
		UploadID: upload.UploadID,
		Filename: upload.Filename,
		Offset:   upload.Offset,
		Expires:  upload.ExpiresAt(h.expirationDelta),
	}
	h.cache.SetUploadProgress(*upload.OwnerID, progress)
	h.broadcastToUser(*upload.OwnerID, Message{Command: MsgUploadProgress, Timestamp: time.Now(), Payload: progress})
}

func (h *Hub) OnCompleted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	h.cache.DeleteUploadProgress(upload.UploadID)
	if upload.OwnerID == nil {
		return
	}

	progress := UploadProgress{UploadID: upload.UploadID, Filename: upload.Filename, Offset: upload.Offset}
	h.broadcastToUser(*upload.OwnerID, Message{Command: MsgUploadComplete, Timestamp: time.Now(), Payload: progress})
}

// OnDeleted forgets an upload the reaper removed.
func (h *Hub) OnDeleted(_ context.Context, upload *mcmodel.ChunkedUpload) {
	h.cache.DeleteUploadProgress(upload.UploadID)
}
