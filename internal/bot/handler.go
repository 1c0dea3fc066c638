package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/alert"
	"github.com/airalert/airalert/internal/telemetry"
)

// Replier sends plain-text replies.
type Replier interface {
	SendText(ctx context.Context, chatID, text string) error
}

// HandlerConfig holds configuration for a Handler.
type HandlerConfig struct {
	// Check and Notify are the shared pipeline.
	Check  *alert.CheckAirQuality
	Notify *alert.NotifyAirQuality

	// Replier sends guidance and error replies.
	Replier Replier

	// Locations answered by /pm25, in order.
	Locations []airquality.Location

	// DefaultState and DefaultCountry complete /check city names.
	DefaultState   string
	DefaultCountry string

	// BotName enables the /cmd@BotName form.
	BotName string

	// Metrics is optional.
	Metrics *telemetry.PipelineMetrics

	// Tracer defaults to the global tracer.
	Tracer trace.Tracer

	// Logger for command handling.
	Logger zerolog.Logger
}

// Handler answers chat commands. It holds no mutable state.
type Handler struct {
	check          *alert.CheckAirQuality
	notify         *alert.NotifyAirQuality
	replier        Replier
	locations      []airquality.Location
	defaultState   string
	defaultCountry string
	botName        string
	metrics        *telemetry.PipelineMetrics
	tracer         trace.Tracer
	logger         zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("airalert/bot")
	}

	return &Handler{
		check:          cfg.Check,
		notify:         cfg.Notify,
		replier:        cfg.Replier,
		locations:      append([]airquality.Location(nil), cfg.Locations...),
		defaultState:   cfg.DefaultState,
		defaultCountry: cfg.DefaultCountry,
		botName:        cfg.BotName,
		metrics:        cfg.Metrics,
		tracer:         tracer,
		logger:         cfg.Logger,
	}
}

// HandleMessage answers one message from chatID. Failures are logged and,
// where possible, reported to the chat; nothing is returned.
func (h *Handler) HandleMessage(ctx context.Context, chatID, text string) {
	cmd, arg := ParseCommand(text, h.botName)
	if cmd == CommandNone {
		return
	}

	ctx, span := h.tracer.Start(ctx, "bot.command", trace.WithAttributes(
		attribute.String("command", cmd.String()),
	))
	defer span.End()

	log := h.logger.With().Str("chat_id", chatID).Str("command", cmd.String()).Logger()
	log.Info().Msg("handling command")

	switch cmd {
	case CommandHelp, CommandUnknown:
		h.reply(ctx, log, chatID, HelpText())

	case CommandPM25:
		for _, loc := range h.locations {
			h.checkAndReply(ctx, log, chatID, loc)
		}

	case CommandCheck:
		if arg == "" {
			h.reply(ctx, log, chatID, checkGuidance)
			return
		}
		loc := airquality.ResolveLocation(arg, h.defaultState, h.defaultCountry)
		if err := h.checkAndReply(ctx, log, chatID, loc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

func (h *Handler) checkAndReply(ctx context.Context, log zerolog.Logger, chatID string, loc airquality.Location) error {
	start := time.Now()
	data, err := h.check.Execute(ctx, loc)
	h.metrics.RecordCheck(ctx, telemetry.TriggerCommand, time.Since(start), err)

	if err != nil {
		log.Warn().Err(err).Str("location", loc.String()).Msg("air quality check failed")
		h.reply(ctx, log, chatID, fmt.Sprintf(errorReplyFormat, loc.Name, failureReason(err)))
		return err
	}

	err = h.notify.Execute(ctx, chatID, data)
	h.metrics.RecordNotification(ctx, telemetry.TriggerCommand, err)
	if err != nil {
		log.Error().Err(err).Str("location", loc.String()).Msg("failed to send reading")
		return err
	}

	log.Debug().
		Str("location", data.Location.DisplayName()).
		Int("aqi", data.AQI).
		Int("pm25", data.PM25).
		Msg("reading sent")
	return nil
}

func (h *Handler) reply(ctx context.Context, log zerolog.Logger, chatID, text string) {
	if err := h.replier.SendText(ctx, chatID, text); err != nil {
		log.Error().Err(err).Msg("failed to send reply")
	}
}

// failureReason is the short cause shown to chat users.
func failureReason(err error) string {
	var lookupErr *airquality.LookupError
	if errors.As(err, &lookupErr) && lookupErr.Status != "" {
		return lookupErr.Status
	}
	if errors.Is(err, airquality.ErrNegativeAQI) {
		return "invalid data"
	}
	return err.Error()
}
