package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/sse"
)

const loadingMessage = "The menu is loading. Please try again in a moment."

// unavailable answers 503 with the loader's user-facing message.
func unavailable(c *ctx.Context, v menuView) {
	msg := v.Message
	if msg == "" {
		msg = loadingMessage
	}
	response.Write(c.W, http.StatusServiceUnavailable, response.Envelope{
		Status:  http.StatusServiceUnavailable,
		Message: msg,
		Data:    v,
	})
}

func (s *Server) showMenu(c *ctx.Context) {
	v := s.catalog.view()
	if v.Menu == nil && v.State == menu.StateFailed {
		unavailable(c, v)
		return
	}
	c.Success(v)
}

func (s *Server) showBusiness(c *ctx.Context) {
	m, _ := s.catalog.Current()
	if m == nil {
		unavailable(c, s.catalog.view())
		return
	}
	c.Success(m.Business)
}

func (s *Server) featured(c *ctx.Context) {
	m, _ := s.catalog.Current()
	if m == nil {
		unavailable(c, s.catalog.view())
		return
	}
	items := menu.FeaturedItems(m.Categories)
	if items == nil {
		items = []menu.FeaturedItem{}
	}
	c.Success(items)
}

// reloadMenu starts a reload in the background and answers 202. With
// ?wait=true it blocks until the load settles and answers with the result.
func (s *Server) reloadMenu(c *ctx.Context) {
	if c.Query("wait") == "true" {
		snap := s.loader.Reload(c.Context())
		v := s.catalog.viewOf(snap)
		if snap.State == menu.StateFailed {
			unavailable(c, v)
			return
		}
		c.Success(v)
		return
	}

	go s.loader.Reload(s.base)
	response.Write(c.W, http.StatusAccepted, response.Envelope{
		Status:  http.StatusAccepted,
		Message: "Menu reload started",
		Data:    s.catalog.view(),
	})
}

// liveEvent is what the SSE and websocket channels send.
type liveEvent struct {
	Type string   `json:"type"`
	Menu menuView `json:"snapshot"`
}

// menuEvents streams a menu view for every loader transition, starting
// with the current one.
func (s *Server) menuEvents(w http.ResponseWriter, r *http.Request) {
	ch := make(chan menuView, 16)
	unsub := s.loader.Subscribe(func(snap menu.Snapshot) {
		select {
		case ch <- s.catalog.viewOf(snap):
		default:
		}
	})
	defer unsub()

	ch <- s.catalog.view()
	stream := sse.New(w, r)
	if err := sse.Pump(stream, "snapshot", ch, 15*time.Second); err != nil && !errors.Is(err, sse.ErrClosed) {
		logger.WithCtx(r.Context()).Warn("server: menu events", "error", err)
	}
}
