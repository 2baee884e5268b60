// Package hub maps live push connections to per-game channels and fans
// committed game state out to them. The hub holds no authoritative game
// state, only connection membership.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/model"
)

type HubMsg interface{ isHubMsg() }

type EnsureChannel struct {
	GameID string
	Reply  chan *Channel
}

type GetChannel struct {
	GameID string
	Reply  chan *Channel
}

type PublishEvent struct {
	GameID string
	Event  Event
}

type ShutdownHub struct{}

func (EnsureChannel) isHubMsg() {}
func (GetChannel) isHubMsg()    {}
func (PublishEvent) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	channels map[string]*Channel
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		channels: make(map[string]*Channel),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureChannel:
				ch := h.channels[msg.GameID]
				if ch == nil {
					ch = newChannel(h.ctx, msg.GameID, h.log)
					h.channels[msg.GameID] = ch
				}
				msg.Reply <- ch

			case GetChannel:
				msg.Reply <- h.channels[msg.GameID] // may be nil

			case PublishEvent:
				if ch := h.channels[msg.GameID]; ch != nil {
					ch.inbox <- Publish{Event: msg.Event}
				}

			case ShutdownHub:
				clear(h.channels)
				h.cancel()
			}
		}
	}
}

// Ensure returns the channel for gameID, creating it on first use.
func (h *Hub) Ensure(gameID string) *Channel {
	reply := make(chan *Channel, 1)
	h.inbox <- EnsureChannel{GameID: gameID, Reply: reply}
	return <-reply
}

func (h *Hub) publish(gameID string, ev Event) {
	h.inbox <- PublishEvent{GameID: gameID, Event: ev}
}

// The methods below implement session.Notifier, so committed documents
// flow straight from the session layer into the game's channel.

func (h *Hub) GameUpdated(g *model.Game) {
	h.publish(g.ID, Event{Type: EventGameUpdate, Game: g})
}

func (h *Hub) PlayerJoined(g *model.Game) {
	h.publish(g.ID, Event{Type: EventPlayerJoined, Game: g})
}

func (h *Hub) RematchCreated(sourceID string, g *model.Game) {
	h.publish(sourceID, Event{Type: EventRematchCreated, Game: g, NewGameID: g.ID})
}
