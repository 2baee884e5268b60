package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/model"
)

type EventType string

const (
	EventConnected          EventType = "connected"
	EventGameUpdate         EventType = "game_update"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventRematchCreated     EventType = "rematch_created"
)

// Event is what a channel fans out to its connections.
type Event struct {
	Type      EventType
	Game      *model.Game
	PlayerID  string
	NewGameID string
}

type ChanMsg interface{ isChanMsg() }

type Join struct {
	ConnID   string
	PlayerID string
	Outbox   chan Event
	// Snapshot is called inside the actor loop, so the connected event it
	// produces is ordered against every broadcast: no update committed
	// before registration can be missed.
	Snapshot func() *model.Game
	// AnnounceJoin broadcasts player_joined on the player's first-ever
	// connection to this channel.
	AnnounceJoin bool
	// Reply reports whether this is the player's first-ever connection.
	Reply chan bool
}

type Leave struct {
	ConnID   string
	PlayerID string
}

type Publish struct{ Event Event }

type GetState struct{ Reply chan ChannelView }

func (Join) isChanMsg()     {}
func (Leave) isChanMsg()    {}
func (Publish) isChanMsg()  {}
func (GetState) isChanMsg() {}

// ChannelView reflects channel internals without data races; test-only.
type ChannelView struct {
	NumConns int
}

// Channel is the actor coordinating all live connections watching one
// game. Events enter through the inbox in commit order and leave through
// per-connection outboxes, so every connection observes the same order.
type Channel struct {
	gameID string
	inbox  chan ChanMsg
	conns  map[string]chan Event // conn id -> outbox
	owners map[string]string     // conn id -> player id
	seen   map[string]bool       // every player id that ever connected
	ctx    context.Context
	log    *zap.Logger
}

func newChannel(parent context.Context, gameID string, log *zap.Logger) *Channel {
	c := &Channel{
		gameID: gameID,
		inbox:  make(chan ChanMsg, 64),
		conns:  make(map[string]chan Event),
		owners: make(map[string]string),
		seen:   make(map[string]bool),
		ctx:    parent,
		log:    log,
	}
	go c.loop()
	return c
}

func (c *Channel) Inbox() chan<- ChanMsg { return c.inbox }

func (c *Channel) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				first := !c.seen[msg.PlayerID]
				c.seen[msg.PlayerID] = true
				var g *model.Game
				if msg.Snapshot != nil {
					g = msg.Snapshot()
				}
				if g != nil {
					msg.Outbox <- Event{Type: EventConnected, Game: g}
				}
				c.conns[msg.ConnID] = msg.Outbox
				c.owners[msg.ConnID] = msg.PlayerID
				if first && msg.AnnounceJoin && g != nil {
					c.broadcast(Event{Type: EventPlayerJoined, Game: g})
				}
				msg.Reply <- first

			case Leave:
				out, ok := c.conns[msg.ConnID]
				if !ok {
					break
				}
				delete(c.conns, msg.ConnID)
				delete(c.owners, msg.ConnID)
				close(out)
				// Informational only; the game stays resumable.
				c.broadcast(Event{Type: EventPlayerDisconnected, PlayerID: msg.PlayerID})

			case Publish:
				c.broadcast(msg.Event)

			case GetState:
				msg.Reply <- ChannelView{NumConns: len(c.conns)}
			}
		}
	}
}

// broadcast never blocks on a connection: a peer whose outbox is full is
// dropped so it cannot delay delivery to the others or the next mutation.
func (c *Channel) broadcast(ev Event) {
	for id, out := range c.conns {
		select {
		case out <- ev:
		default:
			c.log.Warn("dropping slow connection",
				zap.String("game_id", c.gameID), zap.String("conn_id", id))
			close(out)
			delete(c.conns, id)
			delete(c.owners, id)
		}
	}
}

func (c *Channel) shutdown() {
	for id, out := range c.conns {
		close(out)
		delete(c.conns, id)
		delete(c.owners, id)
	}
}
