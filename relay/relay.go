// Package relay implements a safety-gated chat relay in front of an
// OpenAI-compatible completion API. Every chat turn is filtered through a
// secondary safety model on the way in and on the way out.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moriagate/balrog/pkg/history"
	"github.com/moriagate/balrog/pkg/llm"
	"github.com/moriagate/balrog/pkg/safety"
	"github.com/moriagate/balrog/pkg/transcript"
	"github.com/moriagate/balrog/pkg/transcript/inmemory"
	transcriptsqlite "github.com/moriagate/balrog/pkg/transcript/sqlite"
	"github.com/moriagate/balrog/web"
)

// Relay is the web-facing chat relay.
type Relay struct {
	config   Config
	logger   *zap.Logger
	server   *fiber.App
	pipeline *Pipeline
	store    *history.Store
	recorder transcript.Recorder
}

// New creates a Relay from the given config. Both the completion model and
// the safety model are reached through the same upstream endpoint and key.
func New(config Config, logger *zap.Logger) (*Relay, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var recorder transcript.Recorder
	if config.DBPath != "" {
		var err error
		recorder, err = transcriptsqlite.NewDriver(context.Background(), config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite recorder: %w", err)
		}
		logger.Info("using SQLite transcript storage", zap.String("path", config.DBPath))
	} else {
		recorder = inmemory.NewDriver()
		logger.Info("using in-memory transcript storage")
	}

	completion := llm.NewClient(config.UpstreamURL, config.APIKey, config.Model)
	guard := llm.NewClient(config.UpstreamURL, config.APIKey, config.SafetyModel)
	classifier := safety.NewClassifier(guard, logger)
	store := history.NewStore(history.DefaultLimit)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config:   config,
		logger:   logger,
		server:   app,
		store:    store,
		recorder: recorder,
		pipeline: NewPipeline(classifier, completion, store, recorder, logger),
	}

	r.registerRoutes(app)

	return r, nil
}

func (r *Relay) registerRoutes(app *fiber.App) {
	app.Get("/", r.handleIndex)

	app.Post("/api/chat", r.handleChat)
	app.Post("/api/clear", r.handleClear)
	app.Get("/api/health", r.handleHealth)

	// Transcript inspection endpoints
	app.Get("/transcript/stats", r.handleTranscriptStats)
	app.Get("/transcript/recent", r.handleTranscriptRecent)
	app.Get("/transcript/session/:id", r.handleTranscriptSession)
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
		zap.String("model", r.config.Model),
		zap.String("safety_model", r.config.SafetyModel),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay on an existing listener.
func (r *Relay) RunWithListener(l net.Listener) error {
	return r.server.Listener(l)
}

// Shutdown gracefully stops the server.
func (r *Relay) Shutdown() error {
	return r.server.Shutdown()
}

// Close releases resources held by the relay.
func (r *Relay) Close() error {
	return r.recorder.Close()
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs one safety-gated turn for the request's session.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	session := sessionID(c)

	result, err := r.pipeline.Turn(c.Context(), session, req.Message)
	if err != nil {
		return r.turnError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":   result.Reply,
		"timestamp": result.Timestamp.Format(time.RFC3339),
	})
}

// turnError maps pipeline error kinds onto the HTTP error contract.
func (r *Relay) turnError(c *fiber.Ctx, err error) error {
	var turnErr *TurnError
	if !errors.As(err, &turnErr) {
		r.logger.Error("chat endpoint error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Internal server error"})
	}

	switch turnErr.Kind {
	case EmptyInput:
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Empty message"})
	case InputFiltered:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          "Content filtered by safety model",
			"classification": turnErr.Classification,
			"type":           "input_filtered",
		})
	case OutputFiltered:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          "Response filtered by safety model",
			"classification": turnErr.Classification,
			"type":           "output_filtered",
		})
	case EmptyCompletion:
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Empty response from model"})
	case Upstream:
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: turnErr.Message})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Internal server error"})
	}
}

// handleClear resets the session's conversation history.
func (r *Relay) handleClear(c *fiber.Ctx) error {
	r.store.Clear(sessionID(c))
	return c.JSON(fiber.Map{"status": "cleared"})
}

// handleHealth reports liveness and the configured completion model.
func (r *Relay) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"model":     r.config.Model,
	})
}

// handleIndex serves the embedded chat page.
func (r *Relay) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(web.Index)
}

// handleTranscriptStats returns counts over all recorded turns.
func (r *Relay) handleTranscriptStats(c *fiber.Ctx) error {
	stats, err := r.recorder.Stats(c.Context())
	if err != nil {
		r.logger.Error("failed to read transcript stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to read stats"})
	}
	return c.JSON(stats)
}

// handleTranscriptRecent returns the most recent recorded turns.
func (r *Relay) handleTranscriptRecent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	entries, err := r.recorder.Recent(c.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list transcript entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list entries"})
	}

	return c.JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleTranscriptSession returns all recorded turns for one session.
func (r *Relay) handleTranscriptSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "session parameter required"})
	}

	entries, err := r.recorder.BySession(c.Context(), id)
	if err != nil {
		r.logger.Error("failed to list transcript entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list entries"})
	}

	return c.JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}
