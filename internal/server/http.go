// Package server exposes the analysis pipeline over HTTP. Routing is done by
// hand on the request path; the surface is small enough that a router
// dependency buys nothing.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/pgnlab/insight/internal/export"
	"github.com/pgnlab/insight/internal/service/analytics"
	"github.com/pgnlab/insight/pkg/insightdto"
)

const defaultMaxUploadBytes = 16 << 20

type Server struct {
	svc    *analytics.Service
	logger *zap.Logger
	http   *fasthttp.Server
}

func New(svc *analytics.Service, maxUploadBytes int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{svc: svc, logger: logger}
	s.http = &fasthttp.Server{
		Handler:            s.route,
		Name:               "insightd",
		MaxRequestBodySize: maxUploadBytes,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	return s.http.ListenAndServe(addr)
}

// Serve accepts connections from an existing listener; used by tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.http.Serve(ln)
}

func (s *Server) Shutdown() error {
	return s.http.Shutdown()
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	started := time.Now()
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz":
		s.handleHealth(ctx)
	case path == "/v1/batches" && method == fasthttp.MethodPost:
		s.handleAnalyze(ctx)
	case strings.HasPrefix(path, "/v1/batches/"):
		s.routeBatch(ctx, strings.TrimPrefix(path, "/v1/batches/"), method)
	case strings.HasPrefix(path, "/v1/players/"):
		s.routePlayer(ctx, strings.TrimPrefix(path, "/v1/players/"), method)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}

	s.logger.Debug("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("took", time.Since(started)),
	)
}

func (s *Server) routeBatch(ctx *fasthttp.RequestCtx, rest, method string) {
	if method != fasthttp.MethodGet {
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "missing batch id")
		return
	}
	switch tail {
	case "":
		s.handleGetBatch(ctx, id)
	case "export.csv":
		s.handleExportCSV(ctx, id)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) routePlayer(ctx *fasthttp.RequestCtx, rest, method string) {
	if method != fasthttp.MethodGet {
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	name, tail, _ := strings.Cut(rest, "/")
	if name == "" {
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "missing player name")
		return
	}
	switch tail {
	case "":
		s.handlePlayerStats(ctx, name)
	case "batches":
		s.handlePlayerBatches(ctx, name)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()
	if len(bytes.TrimSpace(body)) == 0 {
		s.writeError(ctx, fasthttp.StatusBadRequest, "empty_body", "request body must contain PGN text")
		return
	}
	rep, err := s.svc.AnalyzeBatch(requestContext(ctx), bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, analytics.ErrEmptyBatch) {
			s.writeError(ctx, fasthttp.StatusBadRequest, "no_games", "no games found in upload")
			return
		}
		s.logger.Error("analyze batch failed", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "analyze_failed", "could not analyze batch")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusCreated, insightdto.NewBatchReport(rep))
}

func (s *Server) handleGetBatch(ctx *fasthttp.RequestCtx, id string) {
	rep, err := s.svc.GetReport(requestContext(ctx), id)
	if err != nil {
		s.writeLookupError(ctx, err, "batch")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, insightdto.NewBatchReport(rep))
}

func (s *Server) handleExportCSV(ctx *fasthttp.RequestCtx, id string) {
	rep, err := s.svc.GetReport(requestContext(ctx), id)
	if err != nil {
		s.writeLookupError(ctx, err, "batch")
		return
	}
	kind := string(ctx.QueryArgs().Peek("kind"))
	var buf bytes.Buffer
	switch kind {
	case "", "games":
		err = export.WriteGames(&buf, rep)
	case "players":
		err = export.WritePlayers(&buf, rep)
	default:
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_kind", "kind must be games or players")
		return
	}
	if err != nil {
		s.logger.Error("csv export failed", zap.String("batch_id", id), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "export_failed", "could not build csv")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", id+"-"+kindOrDefault(kind)+".csv"))
	ctx.SetBody(buf.Bytes())
}

func (s *Server) handlePlayerStats(ctx *fasthttp.RequestCtx, name string) {
	batchID := string(ctx.QueryArgs().Peek("batch"))
	if batchID == "" {
		s.writeError(ctx, fasthttp.StatusBadRequest, "missing_batch", "batch query parameter is required")
		return
	}
	stats, err := s.svc.PlayerStats(requestContext(ctx), batchID, name)
	if err != nil {
		s.writeLookupError(ctx, err, "player")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, insightdto.NewPlayerReport(stats))
}

func (s *Server) handlePlayerBatches(ctx *fasthttp.RequestCtx, name string) {
	ids, err := s.svc.BatchesForPlayer(requestContext(ctx), name)
	if err != nil {
		s.writeLookupError(ctx, err, "player")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"player": name, "batches": ids})
}

func (s *Server) writeLookupError(ctx *fasthttp.RequestCtx, err error, what string) {
	switch {
	case errors.Is(err, analytics.ErrBatchNotFound):
		s.writeError(ctx, fasthttp.StatusNotFound, "batch_not_found", "batch not found or expired")
	case errors.Is(err, analytics.ErrNoStore):
		s.writeError(ctx, fasthttp.StatusServiceUnavailable, "no_store", "report store not configured")
	default:
		s.logger.Error("lookup failed", zap.String("what", what), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusNotFound, what+"_not_found", err.Error())
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(payload)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	s.writeJSON(ctx, status, insightdto.APIError{Code: code, Message: message})
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "games"
	}
	return kind
}

// requestContext ties downstream work to the connection lifetime.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	return ctx
}
