package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
)

// HTTP carries the envelope as query parameters on the coordinator's
// single session endpoint. Transport failures come back inside the
// response envelope like any other error, so callers stay uniform.
type HTTP struct {
	base   string
	client *http.Client
}

func NewHTTP(base string) *HTTP {
	return &HTTP{
		base:   base,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *HTTP) Send(ctx context.Context, req protocol.Request) protocol.Response {
	url := t.base + "/api/session?" + req.Values().Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return protocol.Response{Error: "TransportFailed: " + err.Error()}
	}
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return protocol.Response{Error: "TransportFailed: " + err.Error()}
	}
	defer httpResp.Body.Close()

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return protocol.Response{Error: "TransportFailed: " + err.Error()}
	}
	return resp
}
