package protocol

import (
	"testing"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

func TestQueryParameterCarrierPreservesTheEnvelope(t *testing.T) {
	req := Request{
		Operation: OpMove,
		ClientID:  "conn-1",
		UserID:    "alice",
		GameID:    "g1",
		JoinID:    "j1",
		Side:      game.SideWhite,
		Role:      game.RolePlayer,
		Move:      "e2e4",
		Data:      map[string]string{"square": "e7"},
	}

	got := FromValues(req.Values())
	if got.Operation != req.Operation || got.ClientID != req.ClientID ||
		got.UserID != req.UserID || got.GameID != req.GameID ||
		got.JoinID != req.JoinID || got.Side != req.Side ||
		got.Role != req.Role || got.Move != req.Move {
		t.Fatalf("round trip mangled the envelope: %+v", got)
	}
	if got.Data["square"] != "e7" {
		t.Fatalf("perk data lost: %+v", got.Data)
	}
}

func TestZeroFieldsAreOmittedFromTheCarrier(t *testing.T) {
	req := Request{Operation: OpSync, ClientID: "conn-1", UserID: "alice", GameID: "g1"}
	values := req.Values()
	for _, key := range []string{"join_id", "side", "role", "move", "perk", "data"} {
		if values.Has(key) {
			t.Fatalf("zero-valued %q should not be encoded", key)
		}
	}
}
