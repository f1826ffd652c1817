package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clinic-booking/internal/identity"
	"clinic-booking/internal/livequery"
	"clinic-booking/internal/repository"
)

const (
	readTimeout   = 60 * time.Second
	readLimit     = 64 << 10
	lookupTimeout = 5 * time.Second
	frameRate     = 10
	frameBurst    = 20
)

// Feeds is the slot-keyed live query registry.
type Feeds interface {
	Subscribe(ctx context.Context, key string, spec livequery.Spec, cb livequery.Callback) error
	Unsubscribe(key string)
}

type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

// Gateway upgrades HTTP requests to websockets and runs one session per
// connection.
type Gateway struct {
	feeds    Feeds
	verifier TokenVerifier
	catalog  *Catalog
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(feeds Feeds, verifier TokenVerifier, catalog *Catalog, log zerolog.Logger) (*Gateway, error) {
	if feeds == nil {
		return nil, errors.New("realtime: feeds must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("realtime: verifier must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("realtime: catalog must not be nil")
	}
	return &Gateway{
		feeds:    feeds,
		verifier: verifier,
		catalog:  catalog,
		log:      log.With().Str("component", "realtime").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Access is decided per slot from the token, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Router builds the gateway's HTTP surface.
func (g *Gateway) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", g.Handle)
	return r
}

// Handle serves /ws. The optional token query parameter authenticates the
// session up front; clients may also send an auth frame later.
func (g *Gateway) Handle(c *gin.Context) {
	userID := ""
	if token := c.Query("token"); token != "" {
		p, err := g.verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		userID = p.UserID
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn := NewConnection(ws)
	conn.Start()
	s := &session{
		gateway: g,
		conn:    conn,
		userID:  userID,
		subs:    map[string]map[string]string{},
		limiter: rate.NewLimiter(frameRate, frameBurst),
		log:     g.log.With().Str("conn_id", conn.ID).Logger(),
	}
	defer func() {
		s.unsubscribeAll()
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.reply(outFrame{Type: "connected", UserID: userID})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		if !s.limiter.Allow() {
			s.replyError("", "rate_limited", "too many frames")
			continue
		}
		var f inFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.replyError("", "bad_request", "invalid payload")
			continue
		}
		s.handle(ctx, f)
	}
}

type inFrame struct {
	Op     string            `json:"op"`
	Slot   string            `json:"slot,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	Token  string            `json:"token,omitempty"`
}

type outFrame struct {
	Type   string `json:"type"`
	Slot   string `json:"slot,omitempty"`
	UserID string `json:"userId,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

// snapshotFrame always carries docs, so an empty result reads as [].
type snapshotFrame struct {
	Type    string                `json:"type"`
	Slot    string                `json:"slot"`
	Loading bool                  `json:"loading"`
	Docs    []repository.Document `json:"docs"`
}

// session is owned by the connection's read loop; only snapshot callbacks run
// elsewhere and they touch nothing but the connection.
type session struct {
	gateway *Gateway
	conn    *Connection
	userID  string
	subs    map[string]map[string]string
	limiter *rate.Limiter
	log     zerolog.Logger
}

func (s *session) key(slot string) string { return s.conn.ID + "/" + slot }

func (s *session) handle(ctx context.Context, f inFrame) {
	switch f.Op {
	case "subscribe":
		if f.Slot == "" {
			s.replyError("", "bad_request", "slot is required")
			return
		}
		s.subscribe(ctx, f.Slot, f.Params)
	case "unsubscribe":
		if _, ok := s.subs[f.Slot]; !ok {
			return
		}
		delete(s.subs, f.Slot)
		s.gateway.feeds.Unsubscribe(s.key(f.Slot))
		s.reply(outFrame{Type: "unsubscribed", Slot: f.Slot})
	case "auth":
		s.reauth(ctx, f.Token)
	default:
		s.replyError(f.Slot, "unsupported_op", "unknown op")
	}
}

func (s *session) subscribe(ctx context.Context, slot string, params map[string]string) {
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	spec, err := s.gateway.catalog.Build(lctx, slot, params, s.userID)
	cancel()
	if err != nil {
		// A refused slot must not keep showing what the previous identity saw.
		delete(s.subs, slot)
		s.gateway.feeds.Unsubscribe(s.key(slot))
		s.replyError(slot, errorCode(err), err.Error())
		return
	}
	s.subs[slot] = params
	err = s.gateway.feeds.Subscribe(ctx, s.key(slot), spec, func(snap livequery.Snapshot) {
		s.deliver(slot, snap)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("slot", slot).Msg("subscribe failed")
	}
}

// reauth switches the session identity and rebinds every active slot to it. An
// empty token signs the session out.
func (s *session) reauth(ctx context.Context, token string) {
	userID := ""
	if token != "" {
		p, err := s.gateway.verifier.Verify(token)
		if err != nil {
			s.replyError("", "invalid_token", "token rejected")
			return
		}
		userID = p.UserID
	}
	s.userID = userID
	s.reply(outFrame{Type: "authenticated", UserID: userID})

	subs := s.subs
	s.subs = make(map[string]map[string]string, len(subs))
	for slot, params := range subs {
		s.subscribe(ctx, slot, params)
	}
}

func (s *session) unsubscribeAll() {
	for slot := range s.subs {
		s.gateway.feeds.Unsubscribe(s.key(slot))
	}
	s.subs = map[string]map[string]string{}
}

func (s *session) deliver(slot string, snap livequery.Snapshot) {
	if snap.Err != nil {
		s.replyError(slot, "feed_error", snap.Err.Error())
		return
	}
	docs := snap.Docs
	if docs == nil {
		docs = []repository.Document{}
	}
	s.reply(snapshotFrame{Type: "snapshot", Slot: slot, Loading: snap.Loading, Docs: docs})
}

func (s *session) reply(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.log.Error().Err(err).Msg("encode frame")
		return
	}
	_ = s.conn.Send(payload)
}

func (s *session) replyError(slot, code, msg string) {
	s.reply(outFrame{Type: "error", Slot: slot, Code: code, Error: msg})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnknownSlot):
		return "unknown_slot"
	case errors.Is(err, ErrBadParams):
		return "bad_request"
	}
	return "internal_error"
}
