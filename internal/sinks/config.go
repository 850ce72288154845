// Package sinks delivers change events to configured external endpoints.
// Delivery is best-effort per sink: each sink is attempted independently, a
// failure is logged and skipped, and nothing retries or rolls back.
package sinks

import (
	"fmt"
	"net/http"
)

// Sink type discriminators as they appear in configuration payloads.
const (
	TypeForwardStore = "forward-store"
	TypeQueue        = "queue"
	TypeWebhook      = "webhook"
	TypeAnalytics    = "analytics"
)

// Config is one configured sink. Type selects which of the other fields
// apply.
type Config struct {
	Type string `json:"type"`

	// Webhook settings.
	URL     string            `json:"url,omitempty"`
	Secret  string            `json:"secret,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Forward-store target log name.
	Log string `json:"log,omitempty"`

	// Queue target name.
	Queue string `json:"queue,omitempty"`

	// Analytics dataset name.
	Dataset string `json:"dataset,omitempty"`
}

// Validate checks that the discriminator and its required fields are set.
func (c Config) Validate() error {
	switch c.Type {
	case TypeWebhook:
		if c.URL == "" {
			return fmt.Errorf("webhook sink requires url")
		}
	case TypeForwardStore:
		if c.Log == "" {
			return fmt.Errorf("forward-store sink requires log")
		}
	case TypeQueue:
		if c.Queue == "" {
			return fmt.Errorf("queue sink requires queue")
		}
	case TypeAnalytics:
		if c.Dataset == "" {
			return fmt.Errorf("analytics sink requires dataset")
		}
	case "":
		return fmt.Errorf("sink type is required")
	default:
		return fmt.Errorf("unknown sink type %q", c.Type)
	}
	return nil
}

// Targets provides the tenant-scoped durable endpoints sinks write to.
type Targets interface {
	ArchiveLog(name string) (ArchiveLog, error)
	Queue(name string) (Queue, error)
	Analytics() Analytics
}

// Build constructs a sink from its configuration. The http client carries
// the webhook timeout policy.
func Build(c Config, targets Targets, client *http.Client) (Sink, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Type {
	case TypeWebhook:
		if client == nil {
			client = http.DefaultClient
		}
		return &webhookSink{url: c.URL, secret: c.Secret, headers: c.Headers, client: client}, nil
	case TypeForwardStore:
		log, err := targets.ArchiveLog(c.Log)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", c.Log, err)
		}
		return &forwardStoreSink{log: log, name: c.Log}, nil
	case TypeQueue:
		q, err := targets.Queue(c.Queue)
		if err != nil {
			return nil, fmt.Errorf("open queue %s: %w", c.Queue, err)
		}
		return &queueSink{queue: q, name: c.Queue}, nil
	case TypeAnalytics:
		return &analyticsSink{store: targets.Analytics(), dataset: c.Dataset}, nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", c.Type)
	}
}

// BuildAll constructs every sink in configs. A sink that fails to build is
// skipped and reported; the remaining sinks still apply.
func BuildAll(configs []Config, targets Targets, client *http.Client) ([]Sink, []error) {
	var out []Sink
	var errs []error
	for _, c := range configs {
		s, err := Build(c, targets, client)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	return out, errs
}
