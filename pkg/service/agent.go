package service

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/a2a-relay/pkg/auth"
	"github.com/theapemachine/a2a-relay/pkg/service/sse"
)

const DefaultAddr = ":8021"

const subjectKey = "a2a.subject"

/*
A2AServer exposes a TaskManager over HTTP. It is safe for concurrent use
because the TaskManager, RPCServer and SSEBroker are.
*/
type A2AServer struct {
	app      *fiber.App
	manager  *TaskManager
	rpc      *RPCServer
	broker   *sse.SSEBroker
	auth     *auth.Service
	limiter  *auth.ClientLimiter
	addr     string
	draining atomic.Bool
}

type ServerOption func(*A2AServer)

// WithAuth requires a valid bearer JWT on the RPC routes.
func WithAuth(svc *auth.Service) ServerOption {
	return func(srv *A2AServer) {
		srv.auth = svc
	}
}

// WithRateLimiter limits RPC calls per token subject, or per IP without auth.
func WithRateLimiter(limiter *auth.ClientLimiter) ServerOption {
	return func(srv *A2AServer) {
		srv.limiter = limiter
	}
}

func WithAddr(addr string) ServerOption {
	return func(srv *A2AServer) {
		if addr != "" {
			srv.addr = addr
		}
	}
}

/*
NewA2AServer wires the task methods of manager onto a fiber app. Events are
streamed from the manager's broker when it has one.
*/
func NewA2AServer(manager *TaskManager, opts ...ServerOption) *A2AServer {
	card := manager.Card()

	srv := &A2AServer{
		app: fiber.New(fiber.Config{
			AppName:           card.Name,
			ServerHeader:      "A2A-Relay",
			StreamRequestBody: true,
		}),
		manager: manager,
		rpc:     NewRPCServer(),
		broker:  manager.broker,
		addr:    DefaultAddr,
	}

	for _, opt := range opts {
		opt(srv)
	}

	RegisterTaskMethods(srv.rpc, manager)

	if len(card.Methods) == 0 {
		card.Methods = srv.rpc.Methods()
	}

	srv.routes()

	return srv
}

func (srv *A2AServer) routes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip streaming and probe traffic to reduce noise
		Next: func(c fiber.Ctx) bool {
			switch c.Path() {
			case "/events", healthcheck.LivenessEndpoint, healthcheck.ReadinessEndpoint:
				return true
			}

			return false
		},
	}))

	srv.app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	srv.app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(fiber.Ctx) bool {
			return !srv.draining.Load()
		},
	}))

	srv.app.Get("/.well-known/agent.json", srv.handleAgentCard)
	srv.app.Get("/.well-known/agent-card.json", srv.handleAgentCard)
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Get("/metrics", srv.handleMetrics)

	srv.app.Post("/", srv.authenticate, srv.rateLimit, srv.handleRPC)
	srv.app.Post("/rpc", srv.authenticate, srv.rateLimit, srv.handleRPC)
}

// App exposes the fiber app, mostly so tests can drive it with app.Test.
func (srv *A2AServer) App() *fiber.App {
	return srv.app
}

func (srv *A2AServer) Start() error {
	log.Info("a2a server listening", "addr", srv.addr, "agent", srv.manager.Card().Name)

	return srv.app.Listen(srv.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

/*
Shutdown fails the readiness probe, stops accepting connections and waits for
in-flight requests until ctx expires. SSE streams are closed first so they do
not hold the shutdown open.
*/
func (srv *A2AServer) Shutdown(ctx context.Context) error {
	srv.draining.Store(true)

	if srv.broker != nil {
		srv.broker.Close()
	}

	return srv.app.ShutdownWithContext(ctx)
}

func (srv *A2AServer) handleAgentCard(ctx fiber.Ctx) error {
	return ctx.JSON(srv.manager.Card())
}

func (srv *A2AServer) handleEvents(ctx fiber.Ctx) error {
	if srv.broker == nil {
		return ctx.SendStatus(fiber.StatusNotFound)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		// Ensure standard SSE headers are set for clients
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		srv.broker.Subscribe(w, r)
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

// handleMetrics reports the event stream counters.
func (srv *A2AServer) handleMetrics(ctx fiber.Ctx) error {
	if srv.broker == nil {
		return ctx.SendStatus(fiber.StatusNotFound)
	}

	return ctx.JSON(srv.broker.Metrics())
}

/*
handleRPC acts as the central routing for all a2a RPC methods.
*/
func (srv *A2AServer) handleRPC(ctx fiber.Ctx) error {
	status, payload := srv.rpc.Handle(ctx.RequestCtx(), ctx.Body())

	if payload == nil {
		return ctx.SendStatus(status)
	}

	return ctx.Status(status).JSON(payload)
}

func (srv *A2AServer) authenticate(ctx fiber.Ctx) error {
	if srv.auth == nil {
		return ctx.Next()
	}

	claims, err := srv.auth.AuthenticateHeader(ctx.Get(fiber.HeaderAuthorization))

	if err != nil {
		log.Warn("rejected unauthenticated rpc call", "ip", ctx.IP(), "error", err)

		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	if subject, _ := claims.GetSubject(); subject != "" {
		ctx.Locals(subjectKey, subject)
	}

	return ctx.Next()
}

func (srv *A2AServer) rateLimit(ctx fiber.Ctx) error {
	if srv.limiter == nil {
		return ctx.Next()
	}

	key := ctx.IP()

	if subject, ok := ctx.Locals(subjectKey).(string); ok {
		key = subject
	}

	if !srv.limiter.Allow(key) {
		wait := srv.limiter.WaitTime(key)
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))

		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate limit exceeded",
		})
	}

	return ctx.Next()
}
