package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
)

type actorMsg interface{ isActorMsg() }

type opMsg struct {
	ctx   context.Context
	req   protocol.Request
	reply chan protocol.Response
}

type observe struct {
	clientID string
	outbox   chan protocol.Data
}

type unobserve struct{ clientID string }

type stopActor struct{}

func (opMsg) isActorMsg()     {}
func (observe) isActorMsg()   {}
func (unobserve) isActorMsg() {}
func (stopActor) isActorMsg() {}

// gameActor serializes every operation for one game. All record and
// ledger writes for the game happen on this goroutine.
type gameActor struct {
	id        string
	c         *Coordinator
	inbox     chan actorMsg
	observers map[string]chan protocol.Data
	ctx       context.Context
	cancel    context.CancelFunc
}

func newGameActor(parent context.Context, c *Coordinator, gameID string) *gameActor {
	ctx, cancel := context.WithCancel(parent)
	a := &gameActor{
		id:        gameID,
		c:         c,
		inbox:     make(chan actorMsg, 64),
		observers: map[string]chan protocol.Data{},
		ctx:       ctx,
		cancel:    cancel,
	}
	go a.loop()
	return a
}

// call sends one operation into the actor and waits for its response.
func (a *gameActor) call(ctx context.Context, req protocol.Request) protocol.Response {
	reply := make(chan protocol.Response, 1)
	select {
	case a.inbox <- opMsg{ctx: ctx, req: req, reply: reply}:
	case <-a.ctx.Done():
		return protocol.Fail(game.ErrServerShuttingDown)
	}
	select {
	case resp := <-reply:
		return resp
	case <-a.ctx.Done():
		return protocol.Fail(game.ErrServerShuttingDown)
	}
}

func (a *gameActor) loop() {
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case opMsg:
				resp := a.dispatch(msg.ctx, msg.req)
				msg.reply <- resp
				if resp.Data != nil && stateChanging(msg.req.Operation) {
					a.broadcast(*resp.Data)
				}

			case observe:
				a.observers[msg.clientID] = msg.outbox

			case unobserve:
				if ch, ok := a.observers[msg.clientID]; ok {
					close(ch)
					delete(a.observers, msg.clientID)
				}

			case stopActor:
				a.shutdown()
				return
			}
		}
	}
}

func (a *gameActor) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Operation {
	case protocol.OpJoin:
		return a.doJoin(ctx, req)
	case protocol.OpLeave:
		return a.doLeave(ctx, req)
	case protocol.OpMove:
		return a.doMove(ctx, req)
	case protocol.OpSync:
		return a.doSync(ctx, req)
	case protocol.OpPerk:
		return a.doPerk(ctx, req)
	default:
		return protocol.Fail(game.ErrUnknownOperation)
	}
}

func stateChanging(op protocol.Operation) bool {
	return op == protocol.OpJoin || op == protocol.OpLeave || op == protocol.OpMove
}

// broadcast pushes a snapshot to every observer; a full outbox means the
// observer is too slow and gets dropped.
func (a *gameActor) broadcast(data protocol.Data) {
	data.ClientID = ""
	data.JoinID = ""
	data.Side = 0
	data.Role = 0
	for id, ch := range a.observers {
		select {
		case ch <- data:
		default:
			a.c.log.Warn("dropping slow observer",
				zap.String("game_id", a.id),
				zap.String("client_id", id))
			close(ch)
			delete(a.observers, id)
		}
	}
}

func (a *gameActor) shutdown() {
	for id, ch := range a.observers {
		close(ch)
		delete(a.observers, id)
	}
	a.cancel()
}
