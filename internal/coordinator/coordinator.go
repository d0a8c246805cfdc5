// Package coordinator implements the authoritative session server. A hub
// goroutine owns the registry of per-game actors; each actor serializes
// every operation touching its game, which is what makes the join
// ledger's append-then-recheck design race-resistant without locks.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
	"github.com/DoyleJ11/chess-session-backend/internal/perk"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
	"github.com/DoyleJ11/chess-session-backend/internal/rules"
	"github.com/DoyleJ11/chess-session-backend/internal/store"
)

type hubMsg interface{ isHubMsg() }

type createGame struct {
	ctx   context.Context
	req   protocol.Request
	reply chan protocol.Response
}

type lookupActor struct {
	gameID string
	reply  chan *gameActor // nil when the game is unknown
}

type shutdownHub struct{}

func (createGame) isHubMsg()  {}
func (lookupActor) isHubMsg() {}
func (shutdownHub) isHubMsg() {}

// Coordinator validates requests, consults the rules engine, runs the
// perk pipeline and owns all writes to game records and the join ledger.
type Coordinator struct {
	store  store.Store
	eng    rules.Engine
	perks  *perk.Pipeline
	log    *zap.Logger
	inbox  chan hubMsg
	actors map[string]*gameActor
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, st store.Store, eng rules.Engine, perks *perk.Pipeline, log *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		store:  st,
		eng:    eng,
		perks:  perks,
		log:    log,
		inbox:  make(chan hubMsg, 64),
		actors: map[string]*gameActor{},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		c.loop()
	}()
	return c
}

// Handle runs one operation to completion and returns its envelope
// response. Errors are always carried inside the envelope.
func (c *Coordinator) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	if req.ClientID == "" {
		return protocol.Fail(game.ErrMissingClientID)
	}
	if req.UserID == "" {
		return protocol.Fail(game.ErrMissingUserID)
	}

	switch req.Operation {
	case protocol.OpCreate:
		reply := make(chan protocol.Response, 1)
		select {
		case c.inbox <- createGame{ctx: ctx, req: req, reply: reply}:
		case <-c.ctx.Done():
			return protocol.Fail(game.ErrServerShuttingDown)
		}
		select {
		case resp := <-reply:
			return resp
		case <-c.ctx.Done():
			return protocol.Fail(game.ErrServerShuttingDown)
		}
	case protocol.OpJoin, protocol.OpLeave, protocol.OpMove, protocol.OpSync, protocol.OpPerk:
		if req.GameID == "" {
			return protocol.Fail(game.ErrGameNotFound)
		}
		a, err := c.actorFor(req.GameID)
		if err != nil {
			return protocol.Fail(err)
		}
		return a.call(ctx, req)
	default:
		return protocol.Fail(game.ErrUnknownOperation)
	}
}

// Observe registers an outbox that receives a snapshot after every
// state-changing operation on the game. Slow observers are dropped.
func (c *Coordinator) Observe(gameID, clientID string, outbox chan protocol.Data) error {
	a, err := c.actorFor(gameID)
	if err != nil {
		return err
	}
	select {
	case a.inbox <- observe{clientID: clientID, outbox: outbox}:
		return nil
	case <-a.ctx.Done():
		return game.ErrServerShuttingDown
	}
}

func (c *Coordinator) Unobserve(gameID, clientID string) {
	a, err := c.actorFor(gameID)
	if err != nil {
		return
	}
	select {
	case a.inbox <- unobserve{clientID: clientID}:
	case <-a.ctx.Done():
	}
}

// Shutdown stops the hub and every game actor, then waits for the hub
// loop to exit. Safe to call more than once.
func (c *Coordinator) Shutdown() {
	select {
	case c.inbox <- shutdownHub{}:
	case <-c.ctx.Done():
	}
	<-c.done
}

func (c *Coordinator) actorFor(gameID string) (*gameActor, error) {
	reply := make(chan *gameActor, 1)
	select {
	case c.inbox <- lookupActor{gameID: gameID, reply: reply}:
	case <-c.ctx.Done():
		return nil, game.ErrServerShuttingDown
	}
	select {
	case a := <-reply:
		if a == nil {
			return nil, game.ErrGameNotFound
		}
		return a, nil
	case <-c.ctx.Done():
		return nil, game.ErrServerShuttingDown
	}
}

func (c *Coordinator) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.stopActors()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case createGame:
				msg.reply <- c.create(msg.ctx, msg.req)

			case lookupActor:
				if a := c.actors[msg.gameID]; a != nil {
					msg.reply <- a
					break
				}
				// Games created before a restart live only in the
				// store; revive an actor on first touch.
				if _, err := c.store.GetGame(c.ctx, msg.gameID); err != nil {
					msg.reply <- nil
					break
				}
				a := newGameActor(c.ctx, c, msg.gameID)
				c.actors[msg.gameID] = a
				msg.reply <- a

			case shutdownHub:
				c.stopActors()
				c.cancel()
				return
			}
		}
	}
}

func (c *Coordinator) stopActors() {
	for id, a := range c.actors {
		a.inbox <- stopActor{}
		delete(c.actors, id)
	}
}

// create inserts the game record and, when the request names a side or
// role, immediately performs the creator's join. Runs on the hub
// goroutine so two concurrent creates of the same id cannot interleave.
func (c *Coordinator) create(ctx context.Context, req protocol.Request) protocol.Response {
	known, err := c.store.UserExists(ctx, req.UserID)
	if err != nil {
		return protocol.Fail(err)
	}
	if !known {
		return protocol.Fail(game.ErrUserUnknown)
	}

	gameID := req.GameID
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if _, err := c.store.GetGame(ctx, gameID); err == nil {
		return protocol.Fail(game.ErrGameAlreadyExists)
	} else if !errors.Is(err, game.ErrGameNotFound) {
		return protocol.Fail(err)
	}

	now := time.Now()
	rec := &game.Record{
		ID:            gameID,
		BoardPosition: c.eng.StartingPosition(),
		Status:        game.StatusAwait,
		CreatorUserID: req.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.CreateGame(ctx, rec); err != nil {
		return protocol.Fail(err)
	}
	c.log.Info("game created",
		zap.String("game_id", gameID),
		zap.String("user_id", req.UserID))

	a := newGameActor(c.ctx, c, gameID)
	c.actors[gameID] = a

	if req.Side != game.SideNone || req.Role != game.RoleAnonymous {
		join := req
		join.Operation = protocol.OpJoin
		join.GameID = gameID
		return a.call(ctx, join)
	}
	return protocol.OK(snapshot(req.ClientID, rec, nil))
}

func snapshot(clientID string, rec *game.Record, entry *game.JoinEntry) protocol.Data {
	data := protocol.Data{
		ClientID:      clientID,
		GameID:        rec.ID,
		BoardPosition: rec.BoardPosition,
		Status:        rec.Status,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if entry != nil {
		data.JoinID = entry.JoinID
		data.Side = entry.Side
		data.Role = entry.Role
	}
	return data
}
