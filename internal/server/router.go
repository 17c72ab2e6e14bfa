package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/logging"
)

// Lookuper is the part of the cache the HTTP handlers depend on. It allows
// injecting fakes during tests.
type Lookuper interface {
	Lookup(raw string, reply *cache.Reply)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger      *logrus.Logger
	Cache       Lookuper
	Origins     *OriginRegistry
	WaitTimeout time.Duration
	ListenPort  int
}

const (
	contextKeyRequestID = "_anycache_request_id"

	headerSource      = "X-Any-Cache-Source"
	headerPlaceholder = "X-Any-Cache-Placeholder"
	headerUpstream    = "X-Any-Cache-Upstream"

	defaultWaitTimeout = 10 * time.Second
)

// NewApp builds a Fiber application exposing /fetch and /o/:origin/*.
// Diagnostics routes are attached separately by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &lookupHandler{
		cache:  opts.Cache,
		logger: opts.Logger,
		wait:   opts.WaitTimeout,
	}

	app.Get("/fetch", func(c fiber.Ctx) error {
		raw := strings.TrimSpace(c.Query("url"))
		if raw == "" {
			return renderError(c, fiber.StatusBadRequest, "url_required")
		}
		return h.serve(c, "fetch", raw)
	})

	app.Get("/o/:origin/*", func(c fiber.Ctx) error {
		name := c.Params("origin")
		target, ok := opts.Origins.Resolve(name, c.Params("*"), string(c.Request().URI().QueryString()))
		if !ok {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "origin_lookup",
				"origin":     name,
				"request_id": RequestID(c),
			}).Warn("origin unmapped")
			return renderError(c, fiber.StatusNotFound, "origin_unmapped")
		}
		c.Set(headerUpstream, target)
		return h.serve(c, "origin:"+name, target)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并写回响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

type lookupHandler struct {
	cache  Lookuper
	logger *logrus.Logger
	wait   time.Duration
}

// serve 为本次请求创建独立的 Reply，等待真实结果；超时后退回占位内容或 504。
func (h *lookupHandler) serve(c fiber.Ctx, route, raw string) error {
	requestID := RequestID(c)
	if _, err := cache.Normalize(raw); err != nil {
		h.logger.WithError(err).
			WithFields(logging.RequestFields(requestID, route, raw, fiber.StatusBadRequest)).
			Warn("invalid_key")
		return renderError(c, fiber.StatusBadRequest, "invalid_key")
	}

	reply := cache.NewReply()
	defer reply.Close()

	started := time.Now()
	h.cache.Lookup(raw, reply)

	parent := c.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, h.wait)
	defer cancel()

	payload, resolved := reply.Await(ctx)
	fields := logging.RequestFields(requestID, route, raw, fiber.StatusOK)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	switch {
	case resolved:
		fields["source"] = string(payload.Source())
		h.logger.WithFields(fields).Debug("lookup_served")
		return sendPayload(c, payload)
	case payload.IsPlaceholder():
		fields["source"] = string(payload.Source())
		h.logger.WithFields(fields).Info("lookup_served_placeholder")
		return sendPayload(c, payload)
	default:
		fields["status"] = fiber.StatusGatewayTimeout
		h.logger.WithFields(fields).Warn("lookup_pending")
		return renderError(c, fiber.StatusGatewayTimeout, "fetch_pending")
	}
}

func sendPayload(c fiber.Ctx, payload cache.Payload) error {
	body := payload.Bytes()
	c.Set(fiber.HeaderContentType, http.DetectContentType(body))
	c.Set(headerSource, string(payload.Source()))
	if payload.IsPlaceholder() {
		c.Set(headerPlaceholder, "true")
	} else {
		c.Set(headerPlaceholder, "false")
	}
	return c.Status(fiber.StatusOK).Send(body)
}

func renderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
