// Package session hosts open diagrams for websocket clients. Each diagram
// gets a Room owning one engine; the Hub routes clients to rooms and
// persists changed diagrams.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inamate/diagram/internal/engine"
)

const storeTimeout = 10 * time.Second

// Loader returns the stored persisted form of a diagram, or nil data for a
// diagram with nothing saved yet.
type Loader func(ctx context.Context, diagramID string) ([]byte, error)

// Saver stores a diagram's persisted form.
type Saver func(ctx context.Context, diagramID string, data []byte) error

type Options struct {
	Engine       engine.Options
	SaveInterval time.Duration
	Load         Loader
	Save         Saver
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // diagramID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	opts       Options
}

func NewHub(opts Options) *Hub {
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = 5 * time.Second
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		opts:       opts,
	}
}

// Run processes joins and leaves and saves dirty rooms on a ticker until
// Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.opts.SaveInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.saveAll()
		case <-h.stop:
			h.saveAll()
			return
		}
	}
}

// Stop saves every dirty room and ends Run.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DiagramID]
	if !ok {
		var err error
		room, err = h.openRoom(client.DiagramID)
		if err != nil {
			h.mu.Unlock()
			slog.Error("open diagram", "diagram", client.DiagramID, "error", err)
			client.Send(errorMessage("join", "diagram could not be loaded"))
			client.closeSend()
			return
		}
		h.rooms[client.DiagramID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	if err := room.Welcome(client); err != nil {
		slog.Error("build welcome", "error", err)
	}

	slog.Info("client joined", "user", client.UserID, "diagram", client.DiagramID)
}

func (h *Hub) openRoom(diagramID string) (*Room, error) {
	e := engine.NewEngine(h.opts.Engine)
	if h.opts.Load != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		data, err := h.opts.Load(ctx, diagramID)
		cancel()
		if err != nil {
			return nil, err
		}
		if data != nil {
			if err := e.Load(diagramID, data); err != nil {
				return nil, err
			}
		}
	}
	return newRoom(diagramID, e), nil
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.DiagramID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.closeSend()

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.DiagramID)
	}
	h.mu.Unlock()

	if empty {
		h.save(room)
	}

	slog.Info("client left", "user", client.UserID, "diagram", client.DiagramID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if !strings.HasPrefix(msg.Type, IntentPrefix) {
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(errorMessage(msg.Type, "unknown message type"))
		return
	}

	h.mu.RLock()
	room, ok := h.rooms[sender.DiagramID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	// Delivery runs under the room lock. Lock order is Room.mu then Hub.mu.
	err := room.Apply(msg, func(deliveries []delivery) {
		for _, d := range deliveries {
			if d.sender {
				sender.Send(d.msg)
				continue
			}
			h.broadcastToRoom(sender.DiagramID, d.msg, "")
		}
	})
	if err != nil {
		slog.Warn("rejected intent", "type", msg.Type, "user", sender.UserID, "error", err)
		sender.Send(errorMessage(msg.Type, err.Error()))
	}
}

func (h *Hub) broadcastToRoom(diagramID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[diagramID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func (h *Hub) saveAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.save(r)
	}
}

func (h *Hub) save(room *Room) {
	if h.opts.Save == nil {
		return
	}
	data := room.takePending()
	if data == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.opts.Save(ctx, room.diagramID, data); err != nil {
		slog.Error("save diagram", "diagram", room.diagramID, "error", err)
		room.restorePending(data)
		return
	}
	slog.Debug("diagram saved", "diagram", room.diagramID, "bytes", len(data))
}
