package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/engine"
)

// Room holds the authoritative engine of one open diagram. Commands from
// all of its clients are serialized through mu.
type Room struct {
	diagramID string
	clients   map[string]*Client // guarded by Hub.mu

	mu      sync.Mutex
	engine  *engine.Engine
	seq     int64
	pending []byte // persisted form not yet saved, nil when clean
}

func newRoom(diagramID string, e *engine.Engine) *Room {
	return &Room{
		diagramID: diagramID,
		clients:   make(map[string]*Client),
		engine:    e,
	}
}

// delivery is an outbound message and whether it goes to the sender only.
type delivery struct {
	msg    *Message
	sender bool
}

// Apply decodes and runs one intent message. Scene changes and gesture
// notifications go to every client; connector previews only to the sender.
// deliver runs before the room unlocks, so clients see seq in order.
func (r *Room) Apply(msg *Message, deliver func([]delivery)) error {
	kind, ok := strings.CutPrefix(msg.Type, IntentPrefix)
	if !ok {
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
	cmd, err := engine.DecodeCommand(kind, msg.Payload)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.engine.Scene()
	res := r.engine.Apply(cmd)
	r.seq++

	var out []delivery
	for _, n := range res.Notifications {
		if dc, ok := n.(engine.DataChanged); ok {
			r.pending = dc.Data
			continue
		}
		m, err := newMessage(n.Kind(), n)
		if err != nil {
			return fmt.Errorf("encode %s: %w", n.Kind(), err)
		}
		_, preview := n.(engine.ConnectorPreview)
		out = append(out, delivery{msg: m, sender: preview})
	}
	if res.Scene != before {
		m, err := newMessage(TypeScene, r.scenePayload())
		if err != nil {
			return fmt.Errorf("encode scene: %w", err)
		}
		out = append(out, delivery{msg: m})
	}
	for _, d := range out {
		d.msg.DiagramID = r.diagramID
		d.msg.Seq = r.seq
	}
	deliver(out)
	return nil
}

// Welcome sends a joining client the current scene. It holds the room lock
// while sending so no later seq can overtake it.
func (r *Room) Welcome(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := newMessage(TypeWelcome, WelcomePayload{ClientID: c.ClientID, ScenePayload: r.scenePayload()})
	if err != nil {
		return err
	}
	m.DiagramID = r.diagramID
	m.ClientID = c.ClientID
	m.Seq = r.seq
	c.Send(m)
	return nil
}

func (r *Room) scenePayload() ScenePayload {
	return ScenePayload{
		Scene:   document.View(r.engine.Scene()),
		CanUndo: r.engine.CanUndo(),
		CanRedo: r.engine.CanRedo(),
	}
}

// takePending returns the unsaved persisted form and marks the room clean.
func (r *Room) takePending() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := r.pending
	r.pending = nil
	return data
}

// restorePending puts back data whose save failed, unless a newer change
// arrived meanwhile.
func (r *Room) restorePending(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		r.pending = data
	}
}
