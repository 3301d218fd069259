package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const (
	OperationPublish = "nats.publish"
	workerGroup      = "classifier-workers"
	headerJobID      = "Classifier-Job-Id"
)

// jobSubmitted is the wire payload of a job submission event. Only the job id
// travels; the document bytes stay in object storage.
type jobSubmitted struct {
	JobID       string    `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
	onLag    func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// OnQueueLag receives the delay between publish and delivery.
	OnQueueLag func(time.Duration)
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-classifier"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		now:      time.Now,
		onLag:    options.OnQueueLag,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishJobSubmitted(ctx context.Context, jobID string) error {
	msg, err := encodeJobSubmitted(q.subject, jobID, q.now())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, OperationPublish, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

func (q *Queue) SubscribeJobSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg)
		if err != nil {
			slog.Error("job_event_invalid", "subject", msg.Subject, "error", err)
			return
		}
		jobID := event.JobID
		if q.onLag != nil && !event.SubmittedAt.IsZero() {
			q.onLag(time.Since(event.SubmittedAt))
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, jobID); err != nil {
			slog.Error("job_handler_failed", "job_id", jobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeJobSubmitted(subject, jobID string, at time.Time) (*nats.Msg, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("encode job event: empty job id")
	}
	data, err := json.Marshal(jobSubmitted{JobID: jobID, SubmittedAt: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode job event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(headerJobID, jobID)
	return msg, nil
}

// decodeEvent accepts the JSON envelope and, for producers that only send
// the id, a bare job id payload. SubmittedAt is zero when unknown.
func decodeEvent(msg *nats.Msg) (jobSubmitted, error) {
	raw := strings.TrimSpace(string(msg.Data))
	if raw == "" {
		if id := msg.Header.Get(headerJobID); id != "" {
			return jobSubmitted{JobID: id}, nil
		}
		return jobSubmitted{}, fmt.Errorf("decode job event: empty payload")
	}
	if !strings.HasPrefix(raw, "{") {
		return jobSubmitted{JobID: raw}, nil
	}
	var event jobSubmitted
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return jobSubmitted{}, fmt.Errorf("decode job event: %w", err)
	}
	if strings.TrimSpace(event.JobID) == "" {
		return jobSubmitted{}, fmt.Errorf("decode job event: missing job_id")
	}
	return event, nil
}
