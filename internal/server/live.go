package server

import (
	"encoding/json"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

// menuSocket upgrades to a websocket that receives a liveEvent for every
// loader transition. Clients may send {"type":"reload"}.
func (s *Server) menuSocket(w http.ResponseWriter, r *http.Request) {
	_ = ws.Upgrade(w, r, s.hub)
}

// greet sends a new client the current view.
func (s *Server) greet(c *ws.Client) {
	if err := c.SendJSON(liveEvent{Type: "snapshot", Menu: s.catalog.view()}); err != nil {
		logger.Warn("server: greet client", "error", err)
	}
}

type command struct {
	Type string `json:"type"`
}

// command handles inbound client messages on the hub goroutine. A reload
// runs on its own goroutine so the hub keeps serving.
func (s *Server) command(_ *ws.Hub, msg ws.Message) {
	var cmd command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		return
	}
	switch cmd.Type {
	case "reload":
		go s.loader.Reload(s.base)
	case "ping":
		_ = msg.Client.SendJSON(command{Type: "pong"})
	}
}
