package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"canvasroom/internal/http/roomhandler"
	"canvasroom/internal/metrics"
	"canvasroom/internal/services/archive"
	"canvasroom/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type Options struct {
	ListenPort uint16
	AccessLog  bool
	PublicDir  string
}

type httpServer struct {
	opts       Options
	srv        http.Server
	ln         net.Listener
	live       roomhandler.LiveRooms
	archiveSvc archive.IArchiveService
	wsSrv      *ws.WsServer
	metrics    *metrics.Metrics
	ctx        context.Context
}

// NewHttpServer wires the HTTP surface. archiveSvc may be nil.
func NewHttpServer(ctx context.Context, opts Options, wsSrv *ws.WsServer, live roomhandler.LiveRooms,
	archiveSvc archive.IArchiveService, m *metrics.Metrics) *httpServer {
	return &httpServer{
		opts:       opts,
		wsSrv:      wsSrv,
		live:       live,
		archiveSvc: archiveSvc,
		metrics:    m,
		ctx:        ctx,
	}
}

// Engine builds the gin router with every route mounted.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	if h.opts.AccessLog {
		routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	}
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	// Static files for the web UI
	if h.opts.PublicDir != "" {
		routerEngine.StaticFile("/", filepath.Join(h.opts.PublicDir, "index.html"))
		routerEngine.StaticFile("/script.js", filepath.Join(h.opts.PublicDir, "script.js"))
		routerEngine.StaticFile("/style.css", filepath.Join(h.opts.PublicDir, "style.css"))
	}

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// Prometheus
	routerEngine.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	// REST API
	rh := roomhandler.New(h.live, h.archiveSvc)
	rh.Register(routerEngine)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.opts.ListenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	zap.L().Info("http_listening", zap.String("addr", h.ln.Addr().String()))

	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish. Hijacked websocket
// connections are not tracked by Shutdown and close with the process.
func (h *httpServer) Dispose() error {
	// Create a context that times-out after 10 s.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		} else {
			zap.L().Error("http_dispose", zap.Error(err))
		}
		return err // e.g. active conns didn't finish in time
	}
	return nil
}
