// Package protocol defines the transport-agnostic request and response
// envelope shared by every session operation. A carrier may move the
// envelope as HTTP query parameters on a single endpoint, as JSON over a
// websocket, or hand it over in-process; the field set is the contract.
package protocol

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpJoin   Operation = "join"
	OpLeave  Operation = "leave"
	OpMove   Operation = "move"
	OpSync   Operation = "sync"
	OpPerk   Operation = "perk"
)

// Request is the shared operation envelope.
type Request struct {
	Operation Operation         `json:"operation"`
	ClientID  string            `json:"client_id"`
	UserID    string            `json:"user_id"`
	GameID    string            `json:"game_id,omitempty"`
	JoinID    string            `json:"join_id,omitempty"`
	Side      game.Side         `json:"side,omitempty"`
	Role      game.Role         `json:"role,omitempty"`
	Move      string            `json:"move,omitempty"`
	Perk      string            `json:"perk,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Data is the full current-as-of-response game view carried on success.
type Data struct {
	ClientID      string      `json:"client_id"`
	GameID        string      `json:"game_id"`
	JoinID        string      `json:"join_id,omitempty"`
	Side          game.Side   `json:"side"`
	Role          game.Role   `json:"role"`
	BoardPosition string      `json:"board_position"`
	Status        game.Status `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Response carries either an error string or a data view, never both.
type Response struct {
	Error string `json:"error,omitempty"`
	Data  *Data  `json:"data,omitempty"`
}

// Fail builds an error response from a protocol error value.
func Fail(err error) Response { return Response{Error: err.Error()} }

// OK builds a success response.
func OK(data Data) Response { return Response{Data: &data} }

// Transport binds a client session to a coordinator. Implementations are
// in-process calls, HTTP round trips, or persisted-store polling; the
// session never knows which.
type Transport interface {
	Send(ctx context.Context, req Request) Response
}

// Values encodes the request for the query-parameter carrier.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("operation", string(r.Operation))
	v.Set("client_id", r.ClientID)
	v.Set("user_id", r.UserID)
	if r.GameID != "" {
		v.Set("game_id", r.GameID)
	}
	if r.JoinID != "" {
		v.Set("join_id", r.JoinID)
	}
	if r.Side != game.SideNone {
		v.Set("side", strconv.Itoa(int(r.Side)))
	}
	if r.Role != game.RoleAnonymous {
		v.Set("role", strconv.Itoa(int(r.Role)))
	}
	if r.Move != "" {
		v.Set("move", r.Move)
	}
	if r.Perk != "" {
		v.Set("perk", r.Perk)
	}
	if len(r.Data) > 0 {
		raw, _ := json.Marshal(r.Data)
		v.Set("data", string(raw))
	}
	return v
}

// FromValues decodes a request from the query-parameter carrier.
// Unparseable numeric fields fall back to their zero values; the
// coordinator's own validation rejects what matters.
func FromValues(v url.Values) Request {
	side, _ := strconv.Atoi(v.Get("side"))
	role, _ := strconv.Atoi(v.Get("role"))
	req := Request{
		Operation: Operation(v.Get("operation")),
		ClientID:  v.Get("client_id"),
		UserID:    v.Get("user_id"),
		GameID:    v.Get("game_id"),
		JoinID:    v.Get("join_id"),
		Side:      game.Side(side),
		Role:      game.Role(role),
		Move:      v.Get("move"),
		Perk:      v.Get("perk"),
	}
	if raw := v.Get("data"); raw != "" {
		data := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			req.Data = data
		}
	}
	return req
}
