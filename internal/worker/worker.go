package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aescanero/dago-node-template/internal/config"
	"github.com/aescanero/dago-node-template/internal/inventory"
	"github.com/aescanero/dago-node-template/internal/task"
	"github.com/aescanero/dago-node-template/internal/tasks"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for render requests that cannot be processed
var ErrInvalidRequest = errors.New("invalid render request")

// publishTimeout bounds publishing and acknowledging a handled message
const publishTimeout = 5 * time.Second

// Worker represents the template worker
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	inventory     *inventory.Inventory
	matcher       inventory.Matcher
	runner        *task.Runner
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	inv *inventory.Inventory,
	matcher inventory.Matcher,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		inventory:     inv,
		matcher:       matcher,
		runner:        task.NewRunner(cfg.NumWorkers, logger),
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting template worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
		zap.Int("hosts", w.inventory.Len()),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	go w.processWork()

	w.logger.Info("template worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops reading new requests and waits for the in-flight request to be
// rendered, published and acknowledged
func (w *Worker) Stop() error {
	w.logger.Info("stopping template worker", zap.String("worker_id", w.id))

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for worker %s to stop", w.id)
	}

	w.logger.Info("template worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP means the group already exists
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork processes work from the Redis stream
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage handles a single render request message. It runs to
// completion after Stop so the message is always acknowledged.
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing render request",
		zap.String("message_id", messageID),
	)

	ctx := context.WithoutCancel(w.ctx)

	request, err := w.parseRenderRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse render request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(ctx, &RenderRequest{RequestID: messageID}, err)
		w.acknowledgeMessage(ctx, messageID)
		return
	}

	response, err := w.processRenderRequest(ctx, request)
	if err != nil {
		w.logger.Error("failed to process render request",
			zap.String("message_id", messageID),
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
		w.publishError(ctx, request, err)
	} else if err := w.publishResponse(ctx, response); err != nil {
		w.logger.Error("failed to publish render response",
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
	}

	w.acknowledgeMessage(ctx, messageID)
}

// RenderRequest asks for a template to be rendered for a set of hosts
type RenderRequest struct {
	RequestID string         `json:"request_id"`
	Template  string         `json:"template"`
	Path      string         `json:"path,omitempty"`
	Filter    string         `json:"filter,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// RenderResponse carries the per-host results of a render request
type RenderResponse struct {
	RequestID   string                  `json:"request_id"`
	Template    string                  `json:"template"`
	Results     map[string]*task.Result `json:"results"`
	FailedHosts []string                `json:"failed_hosts"`
	Timestamp   time.Time               `json:"timestamp"`
}

// parseRenderRequest parses a render request from a Redis message
func (w *Worker) parseRenderRequest(values map[string]interface{}) (*RenderRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'data' field", ErrInvalidRequest)
	}

	var request RenderRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if request.Template == "" {
		return nil, fmt.Errorf("%w: template is required", ErrInvalidRequest)
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	return &request, nil
}

// processRenderRequest renders the requested template for every selected host
func (w *Worker) processRenderRequest(ctx context.Context, request *RenderRequest) (*RenderResponse, error) {
	path, err := w.resolvePath(request.Path)
	if err != nil {
		return nil, err
	}

	hosts, err := w.inventory.Filter(ctx, w.matcher, request.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter hosts: %w", err)
	}

	var opts []tasks.Option
	if len(request.Data) > 0 {
		opts = append(opts, tasks.WithData(request.Data))
	}

	agg := w.runner.Run(ctx, request.Template, hosts, tasks.TemplateFileTask(request.Template, path, opts...))

	failed := agg.FailedHosts()
	if failed == nil {
		failed = []string{}
	}

	return &RenderResponse{
		RequestID:   request.RequestID,
		Template:    request.Template,
		Results:     agg.Results(),
		FailedHosts: failed,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// resolvePath maps a request path onto the template directory
func (w *Worker) resolvePath(path string) (string, error) {
	if path == "" {
		return w.config.TemplateDir, nil
	}
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("%w: path %q escapes the template directory", ErrInvalidRequest, path)
	}
	return filepath.Join(w.config.TemplateDir, path), nil
}

// publishResponse publishes the render results
func (w *Worker) publishResponse(ctx context.Context, response *RenderResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	w.logger.Info("published render results",
		zap.String("request_id", response.RequestID),
		zap.Int("hosts", len(response.Results)),
		zap.Int("failed", len(response.FailedHosts)),
	)

	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(ctx context.Context, request *RenderRequest, err error) {
	errorEvent := map[string]interface{}{
		"request_id": request.RequestID,
		"template":   request.Template,
		"error":      err.Error(),
		"timestamp":  time.Now().UTC(),
	}

	data, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.logger.Error("failed to marshal error event", zap.Error(marshalErr))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, publishErr := w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream + ".errors",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(ctx context.Context, messageID string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := w.redisClient.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
