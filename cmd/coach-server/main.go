package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/chess-coach-go/internal/coachbuilder"
	appcfg "github.com/kapu/chess-coach-go/internal/config"
	"github.com/kapu/chess-coach-go/internal/obslog"
	svccoach "github.com/kapu/chess-coach-go/internal/service/coach"
	"github.com/kapu/chess-coach-go/pkg/coachdto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	deps, err := coachbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}
	defer deps.Engine.Close()
	defer deps.Cache.Close()

	srv := newServer(deps.Service, logger)
	httpSrv := &fasthttp.Server{
		Handler:          srv.route,
		Name:             "coach-server",
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     120 * time.Second,
		DisableKeepalive: false,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpSrv.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.ShutdownWithContext(ctx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}
}

type server struct {
	svc    *svccoach.Service
	logger *zap.Logger
}

func newServer(svc *svccoach.Service, logger *zap.Logger) *server {
	return &server{svc: svc, logger: logger}
}

func (s *server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case path == "/v1/position/evaluate" && method == fasthttp.MethodPost:
		s.handleEvaluatePosition(ctx)
	case path == "/v1/move/evaluate" && method == fasthttp.MethodPost:
		s.handleEvaluateMove(ctx)
	case path == "/v1/session/converse" && method == fasthttp.MethodPost:
		s.handleConverse(ctx)
	case path == "/v1/session/demo-move" && method == fasthttp.MethodPost:
		s.handleDemoMove(ctx)
	case path == "/v1/session/mode" && method == fasthttp.MethodPost:
		s.handleSwitchMode(ctx)
	case path == "/v1/session/navigate" && method == fasthttp.MethodPost:
		s.handleNavigate(ctx)
	case path == "/v1/session/end" && method == fasthttp.MethodPost:
		s.handleEndSession(ctx)
	case path == "/v1/sessions" && method == fasthttp.MethodGet:
		s.handleSessions(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, &coachdto.DomainError{
			Code:    coachdto.CodeInvalidInput,
			Message: "unknown route",
		})
	}
}

func (s *server) handleEvaluatePosition(ctx *fasthttp.RequestCtx) {
	var req coachdto.EvaluatePositionRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.EvaluatePosition(ctx, req)
	s.respond(ctx, resp, err)
}

func (s *server) handleEvaluateMove(ctx *fasthttp.RequestCtx) {
	var req coachdto.EvaluateMoveRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.EvaluateMove(ctx, req)
	s.respond(ctx, resp, err)
}

func (s *server) handleConverse(ctx *fasthttp.RequestCtx) {
	var req coachdto.ConverseRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.Converse(ctx, req)
	s.respond(ctx, resp, err)
}

func (s *server) handleDemoMove(ctx *fasthttp.RequestCtx) {
	var req coachdto.SubmitDemoMoveRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.SubmitDemoMove(ctx, req)
	s.respond(ctx, resp, err)
}

func (s *server) handleSwitchMode(ctx *fasthttp.RequestCtx) {
	var req coachdto.SwitchModeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.SwitchMode(ctx, req)
	s.respond(ctx, resp, err)
}

func (s *server) handleNavigate(ctx *fasthttp.RequestCtx) {
	var req coachdto.NavigateRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.Navigate(ctx, req)
	s.respond(ctx, resp, err)
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *server) handleEndSession(ctx *fasthttp.RequestCtx) {
	var req endSessionRequest
	if !decodeBody(ctx, &req) {
		return
	}
	resp, err := s.svc.EndSession(ctx, req.SessionID)
	s.respond(ctx, resp, err)
}

func (s *server) handleSessions(ctx *fasthttp.RequestCtx) {
	limit := 0
	if v := ctx.QueryArgs().Peek("limit"); len(v) > 0 {
		if n, err := strconv.Atoi(string(v)); err == nil {
			limit = n
		}
	}
	resp, err := s.svc.Sessions(ctx, limit)
	s.respond(ctx, resp, err)
}

func (s *server) respond(ctx *fasthttp.RequestCtx, payload any, err error) {
	if err != nil {
		var de *coachdto.DomainError
		if errors.As(err, &de) {
			writeError(ctx, statusFor(de.Code), de)
			return
		}
		s.logger.Error("unhandled error", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, &coachdto.DomainError{
			Code:    coachdto.CodeInternal,
			Message: "internal error",
		})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, payload)
}

func statusFor(code string) int {
	switch code {
	case coachdto.CodeInvalidInput, coachdto.CodeIllegalMove:
		return fasthttp.StatusBadRequest
	case coachdto.CodeRateLimited:
		return fasthttp.StatusTooManyRequests
	case coachdto.CodeEngineUnavailable:
		return fasthttp.StatusServiceUnavailable
	case coachdto.CodeMalformedAgentOutput:
		return fasthttp.StatusBadGateway
	default:
		return fasthttp.StatusInternalServerError
	}
}

func decodeBody(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, &coachdto.DomainError{
			Code:    coachdto.CodeInvalidInput,
			Message: "malformed request body",
		})
		return false
	}
	return true
}

type errorBody struct {
	Error *coachdto.DomainError `json:"error"`
}

func writeError(ctx *fasthttp.RequestCtx, status int, de *coachdto.DomainError) {
	writeJSON(ctx, status, errorBody{Error: de})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	data, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":{"code":"internal","message":"encode failure"}}`)
		return
	}
	ctx.SetBody(data)
}
