package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the trigger subscription.
const (
	JobTypeBroadcast   = "broadcast"
	JobTypeHealthCheck = "health_check"
)

// ErrMalformedJob is returned for a message that is not a job.
var ErrMalformedJob = errors.New("malformed job message")

// JobMessage is a trigger job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// JobRunner executes trigger jobs against a BroadcastJob.
type JobRunner struct {
	broadcast *BroadcastJob
	logger    zerolog.Logger
}

// NewJobRunner creates a JobRunner.
func NewJobRunner(broadcast *BroadcastJob, logger zerolog.Logger) *JobRunner {
	return &JobRunner{broadcast: broadcast, logger: logger}
}

// Handle runs the job encoded in data. Unknown job types are ignored and
// return nil. A non-nil error other than ErrMalformedJob means the job
// should be retried.
func (r *JobRunner) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case JobTypeBroadcast:
		return r.runBroadcast(ctx)
	case JobTypeHealthCheck:
		return r.broadcast.HealthCheck(ctx)
	default:
		r.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (r *JobRunner) runBroadcast(ctx context.Context) error {
	result := r.broadcast.Run(ctx)

	// Redelivery re-sends what was delivered, so retry only when nothing was.
	if result.Failed > 0 && result.Succeeded == 0 {
		return fmt.Errorf("broadcast failed for all %d locations", result.Failed)
	}
	return nil
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           *JobRunner
	Logger           zerolog.Logger
}

// PubSubHandler receives trigger jobs from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           *JobRunner
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Broadcasts run one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.runner.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedJob):
		logger.Error().Err(err).Msg("discarding message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed")
		msg.Ack()
	}
}
