package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
)

const progressMessageType = "progress"

// ProgressChannel is the pub/sub channel carrying one request's stage transitions.
func ProgressChannel(requestID string) string {
	return "generation_updates:" + requestID
}

func progressKey(requestID string) string {
	return "generation_progress:" + requestID
}

// ProgressPublisher delivers stage transitions of a generation request. Delivery is
// best effort and never fails the request.
type ProgressPublisher interface {
	Publish(ctx context.Context, update models.ProgressUpdate)
}

type NopProgress struct{}

func (NopProgress) Publish(context.Context, models.ProgressUpdate) {}

// RedisProgress publishes updates over Redis pub/sub and keeps the latest one per
// request for late subscribers.
type RedisProgress struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

func NewRedisProgress(client *redis.Client, ttl time.Duration, log *logrus.Entry) *RedisProgress {
	return &RedisProgress{client: client, ttl: ttl, log: log}
}

func (p *RedisProgress) Publish(ctx context.Context, update models.ProgressUpdate) {
	if update.RequestID == "" {
		return
	}
	data, err := json.Marshal(models.WSMessage{Type: progressMessageType, Payload: update})
	if err != nil {
		return
	}

	// The request may already be cancelled while we report its failure.
	ctx = context.WithoutCancel(ctx)
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, progressKey(update.RequestID), data, p.ttl)
	pipe.Publish(ctx, ProgressChannel(update.RequestID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).WithField("request_id", update.RequestID).Warn("failed to publish progress")
	}
}

// Latest returns the most recent update recorded for requestID, or nil if none is known.
func (p *RedisProgress) Latest(ctx context.Context, requestID string) (*models.ProgressUpdate, error) {
	data, err := p.client.Get(ctx, progressKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg struct {
		Payload models.ProgressUpdate `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg.Payload, nil
}

// tracker reports the progress of one generation request.
type tracker struct {
	pub       ProgressPublisher
	requestID string
	pipeline  string
	total     int
	completed atomic.Int32
}

func newTracker(pub ProgressPublisher, requestID, pipeline string) *tracker {
	if pub == nil {
		pub = NopProgress{}
	}
	return &tracker{pub: pub, requestID: requestID, pipeline: pipeline}
}

func (t *tracker) publish(ctx context.Context, u models.ProgressUpdate) {
	u.RequestID = t.requestID
	u.Pipeline = t.pipeline
	t.pub.Publish(ctx, u)
}

func (t *tracker) stage(ctx context.Context, s models.Stage) {
	t.publish(ctx, models.ProgressUpdate{Stage: s})
}

// generating starts the fan-out phase over total units.
func (t *tracker) generating(ctx context.Context, total int) {
	t.total = total
	t.publish(ctx, models.ProgressUpdate{Stage: models.StageGenerating, Total: total})
}

func (t *tracker) unitDone(ctx context.Context) {
	n := t.completed.Add(1)
	t.publish(ctx, models.ProgressUpdate{Stage: models.StageGenerating, Completed: int(n), Total: t.total})
}

func (t *tracker) done(ctx context.Context, cards int) {
	t.publish(ctx, models.ProgressUpdate{Stage: models.StageDone, CardCount: cards})
}

func (t *tracker) fail(ctx context.Context, err error) {
	t.publish(ctx, models.ProgressUpdate{Stage: models.StageFailed, Error: err.Error()})
}
