// Package classify labels transcripts on the capture taxonomy through an
// OpenAI-compatible chat completions endpoint. Classification degrades, it
// never fails: any provider problem yields the universal fallback so a
// capture is never lost for want of a label.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/entry"
)

const systemPrompt = `You label a single voice-memo transcript. Respond with JSON only, no prose:
{"type": "...", "topic": "...", "urgency": "..."}

type must be one of: todo, idea, lesson, observation, reminder, question, note
topic must be one of: work, family, personal, learning, ttrpg, other
urgency must be one of: now, soon, whenever

When unsure, use note / other / whenever.`

// Classifier sends transcript text to the inference provider and maps the
// response onto the fixed three-axis taxonomy.
type Classifier struct {
	url     string
	model   string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	log     *logrus.Entry
}

// New builds a Classifier from configuration. An empty endpoint URL is
// valid: Classify then always returns the fallback.
func New(cfg *config.Config, log *logrus.Entry) *Classifier {
	timeout := cfg.ClassifyTimeout()
	return &Classifier{
		url:     cfg.ClassifyURL,
		model:   cfg.ClassifyModel,
		apiKey:  cfg.ClassifyAPIKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// rawLabels is the untrusted shape decoded from the provider. Fields are
// validated one by one into the strict enumeration type.
type rawLabels struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Urgency string `json:"urgency"`
}

// Classify labels one transcript. Never fails outward: provider errors,
// timeouts, and garbage output all resolve to the fallback classification.
func (c *Classifier) Classify(ctx context.Context, transcript string) entry.Classification {
	if c.url == "" {
		c.log.Debug("classifier not configured, using fallback")
		return entry.Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.request(ctx, transcript)
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("classification failed, using fallback")
		return entry.Fallback()
	}

	cls := entry.ClassificationFrom(
		strings.ToLower(strings.TrimSpace(raw.Type)),
		strings.ToLower(strings.TrimSpace(raw.Topic)),
		strings.ToLower(strings.TrimSpace(raw.Urgency)),
	)
	c.log.WithFields(logrus.Fields{
		"type":    cls.Type,
		"topic":   cls.Topic,
		"urgency": cls.Urgency,
	}).Debug("transcript classified")
	return cls
}

// request posts the transcript and retries transient failures with
// exponential backoff inside the classification timeout budget.
func (c *Classifier) request(ctx context.Context, transcript string) (*rawLabels, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": transcript},
		},
		"temperature": 0.0,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	var out *rawLabels
	var lastErr error
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider server error: %s", strings.TrimSpace(string(body)))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("provider rejected request: %s", strings.TrimSpace(string(body)))
			return backoff.Permanent(lastErr)
		}

		labels, err := decodeLabels(body)
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		out = labels
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.timeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return out, nil
}

// decodeLabels pulls the labels object out of a chat completions response.
// The model reply may wrap the JSON in prose, so the first balanced-looking
// object substring is extracted before decoding.
func decodeLabels(body []byte) (*rawLabels, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Choices) > 0 {
		if labels, err := extractJSON(parsed.Choices[0].Message.Content); err == nil {
			return labels, nil
		}
	}

	// Some gateways return the labels object directly.
	if labels, err := extractJSON(string(body)); err == nil {
		return labels, nil
	}
	return nil, fmt.Errorf("unparseable provider response: %s", strings.TrimSpace(string(body)))
}

func extractJSON(content string) (*rawLabels, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in content")
	}
	var labels rawLabels
	if err := json.Unmarshal([]byte(content[start:end+1]), &labels); err != nil {
		return nil, err
	}
	return &labels, nil
}
