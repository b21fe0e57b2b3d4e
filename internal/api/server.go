// Package api exposes an Engine over HTTP: run a generation, then fetch its
// result and its steering trace.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/trace"
)

type Server struct {
	engine   *inference.Engine
	defaults inference.Defaults
	store    *GenerationStore
	clock    func() time.Time
}

// NewServer serves engine. engine.Mods provides the trace store, so it must
// be set for the trace routes to find anything.
func NewServer(engine *inference.Engine, defaults inference.Defaults, store *GenerationStore) *Server {
	if store == nil {
		store = NewGenerationStore()
	}
	return &Server{
		engine:   engine,
		defaults: defaults,
		store:    store,
		clock:    time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.DELETE("/v1/generations/:id", s.handleDeleteGeneration)

	e.GET("/v1/traces/:id", s.handleGetTrace)
	e.DELETE("/v1/traces/:id", s.handleDeleteTrace)

	e.GET("/v1/mods", s.handleListMods)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.engine == nil || s.engine.Backend == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference engine not configured", "", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	inputIDs, cfg, err := s.prepare(&req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeRequestError(c, err)
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = inference.NewRequestID()
	} else if _, exists := s.store.Get(requestID); exists {
		return writeRequestError(c, newDuplicateRequestID(requestID, false))
	}

	ctx := c.Request().Context()
	res, err := s.engine.Generate(ctx, requestID, inputIDs, cfg)
	if err != nil && res == nil {
		if errors.Is(err, inference.ErrDuplicateRequest) {
			return writeRequestError(c, newDuplicateRequestID(requestID, true))
		}
		if ctx.Err() != nil {
			return writeError(c, http.StatusServiceUnavailable, "cancelled", "request cancelled", "", "")
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	gen := s.store.Save(&req, res, s.clock())
	if err != nil {
		// Partial output from a failed backend is still reported.
		var be *inference.BackendError
		if errors.As(err, &be) {
			gen.Error = &ResponseError{Message: err.Error(), Type: "backend_error", Code: be.Phase}
			return c.JSON(http.StatusBadGateway, gen)
		}
		gen.Error = &ResponseError{Message: err.Error(), Type: "server_error"}
		return c.JSON(http.StatusInternalServerError, gen)
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) prepare(req *GenerateRequest) ([]int, inference.Config, error) {
	tok := s.engine.Tokenizer
	opts, err := req.options(tok.VocabSize())
	if err != nil {
		return nil, inference.Config{}, err
	}
	inputIDs := req.InputIDs
	if len(inputIDs) == 0 {
		if strings.TrimSpace(req.Prompt) == "" {
			return nil, inference.Config{}, newInvalidRequest("prompt", "prompt or input_ids is required")
		}
		if inputIDs, err = tok.Encode(req.Prompt); err != nil {
			return nil, inference.Config{}, newInvalidRequest("prompt", fmt.Sprintf("prompt: %v", err))
		}
	}
	for _, id := range inputIDs {
		if id < 0 || id >= tok.VocabSize() {
			return nil, inference.Config{}, newBadInputID(id)
		}
	}
	return inputIDs, inference.ResolveConfig(opts, s.defaults), nil
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "generation not found")
	}
	rec, ok := s.store.Get(id)
	if !ok || !rec.Visible {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, rec.Generation)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	rec, ok := s.store.Get(id)
	if !ok || !rec.Visible {
		return writeNotFound(c, "generation not found")
	}
	if !s.store.Delete(id) {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, DeleteResp{
		ID:      id,
		Object:  "generation",
		Deleted: true,
	})
}

func (s *Server) traces() *trace.Store {
	if s.engine == nil || s.engine.Mods == nil {
		return nil
	}
	return s.engine.Mods.Traces()
}

func (s *Server) handleGetTrace(c *echo.Context) error {
	id := c.Param("id")
	store := s.traces()
	if store == nil {
		return writeNotFound(c, "trace not found")
	}
	entries, ok := store.Get(id)
	if !ok {
		return writeNotFound(c, "trace not found")
	}
	if c.QueryParam("format") == "jsonl" {
		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		res.WriteHeader(http.StatusOK)
		return trace.NewJSONLines(res).Flush(id, entries)
	}
	if entries == nil {
		entries = []trace.Entry{}
	}
	return c.JSON(http.StatusOK, TraceResponse{
		ID:      id,
		Object:  "trace",
		Entries: entries,
	})
}

func (s *Server) handleDeleteTrace(c *echo.Context) error {
	id := c.Param("id")
	store := s.traces()
	if store == nil || !store.Discard(id) {
		return writeNotFound(c, "trace not found")
	}
	return c.JSON(http.StatusOK, DeleteResp{
		ID:      id,
		Object:  "trace",
		Deleted: true,
	})
}

func (s *Server) handleListMods(c *echo.Context) error {
	names := []string{}
	if s.engine != nil && s.engine.Mods != nil {
		names = append(names, s.engine.Mods.Names()...)
	}
	return c.JSON(http.StatusOK, ModsResponse{Object: "list", Data: names})
}
