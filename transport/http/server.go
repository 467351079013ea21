// Package http is the JSON-over-HTTP boundary adapter: one path-routed
// endpoint family per engine operation, with base64-encoded
// fingerprints in request and response bodies. It is a thin shim over the
// registry and the factory-built indexes; no engine semantics live here.
package http

import (
	"context"
	"strconv"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/kerinin/hmsearch/metrics"
	"github.com/kerinin/hmsearch/registry"
)

var log = logging.Logger("hmsearch/http")

// Defaults fill in the fingerprint width and tolerance for the short
// route forms that omit them.
type Defaults struct {
	Bits      int
	Tolerance int
}

// Server serves the /add, /query and /delete endpoint families plus
// Prometheus metrics on /metrics.
type Server struct {
	registry *registry.Registry
	defaults Defaults
}

// NewServer builds a server over reg.
func NewServer(reg *registry.Registry, defaults Defaults) *Server {
	return &Server{registry: reg, defaults: defaults}
}

// ListenAndServe blocks until the listener fails or ctx is canceled. On
// cancellation it shuts the listener down and closes every open index.
func (s *Server) ListenAndServe(ctx context.Context, listenOn string) error {
	handler := s.Handler()
	handler = fasthttp.CompressHandler(handler)

	srv := &fasthttp.Server{Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", listenOn)
		errCh <- srv.ListenAndServe(listenOn)
	}()

	select {
	case <-ctx.Done():
		err := srv.Shutdown()
		s.registry.CloseAll()
		return err
	case err := <-errCh:
		s.registry.CloseAll()
		return err
	}
}

// Handler returns the route dispatcher without a listener, for tests and
// for embedding.
func (s *Server) Handler() fasthttp.RequestHandler {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/metrics" {
			metricsHandler(ctx)
			return
		}
		if !ctx.IsPost() {
			replyStatus(ctx, fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleOperation(ctx)
	}
}

func replyStatus(ctx *fasthttp.RequestCtx, code int) {
	incStatus(code)
	ctx.SetStatusCode(code)
}

func replyError(ctx *fasthttp.RequestCtx, code int, msg string) {
	incStatus(code)
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

func incStatus(code int) {
	metrics.StatusCode.WithLabelValues(strconv.Itoa(code)).Inc()
}
