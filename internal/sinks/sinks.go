package sinks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/keeldb/keel/internal/changelog"
)

// SignatureHeader carries the HMAC of a signed webhook body.
const SignatureHeader = "X-Keel-Signature"

// Sink delivers one change event. The payload is the event's serialized
// wire form; implementations must not mutate it.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	Deliver(ctx context.Context, e *changelog.Event, payload []byte) error
}

// ArchiveLog is the append surface of an archive log.
type ArchiveLog interface {
	Append(ctx context.Context, tsMs int64, payload []byte) (uint64, error)
}

// Queue is the enqueue surface of a work queue.
type Queue interface {
	Enqueue(ctx context.Context, tsMs int64, payload []byte) (uint64, error)
}

// Analytics is the recording surface of the analytics store.
type Analytics interface {
	RecordEvent(dataset, model, operation string, tsMs int64) error
}

// Sign computes the signature header value for a webhook body: the
// hex-encoded HMAC-SHA256 of the exact bytes, prefixed with the scheme.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type webhookSink struct {
	url     string
	secret  string
	headers map[string]string
	client  *http.Client
}

func (s *webhookSink) Name() string { return "webhook " + s.url }

func (s *webhookSink) Deliver(ctx context.Context, e *changelog.Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.secret, payload))
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

type forwardStoreSink struct {
	log  ArchiveLog
	name string
}

func (s *forwardStoreSink) Name() string { return "forward-store " + s.name }

func (s *forwardStoreSink) Deliver(ctx context.Context, e *changelog.Event, payload []byte) error {
	_, err := s.log.Append(ctx, e.Timestamp, payload)
	return err
}

type queueSink struct {
	queue Queue
	name  string
}

func (s *queueSink) Name() string { return "queue " + s.name }

func (s *queueSink) Deliver(ctx context.Context, e *changelog.Event, payload []byte) error {
	_, err := s.queue.Enqueue(ctx, e.Timestamp, payload)
	return err
}

type analyticsSink struct {
	store   Analytics
	dataset string
}

func (s *analyticsSink) Name() string { return "analytics " + s.dataset }

func (s *analyticsSink) Deliver(ctx context.Context, e *changelog.Event, payload []byte) error {
	return s.store.RecordEvent(s.dataset, e.Model, string(e.Operation), e.Timestamp)
}
