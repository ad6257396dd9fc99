// Package nerclient talks to an external named-entity recognition service
// (a spaCy-style sidecar) over JSON.
package nerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docquery/docquery/internal/models"
)

// Client posts text to the recognizer endpoint and decodes entity spans.
// The wire format is {"text": ...} in, [{"label","start","end"}, ...] out.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type entitiesRequest struct {
	Text string `json:"text"`
}

// Entities implements types.EntityRecognizer.
func (c *Client) Entities(ctx context.Context, text string) ([]models.Entity, error) {
	body, err := json.Marshal(entitiesRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer returned status %d", resp.StatusCode)
	}

	var ents []models.Entity
	if err := json.NewDecoder(resp.Body).Decode(&ents); err != nil {
		return nil, fmt.Errorf("decoding recognizer response: %w", err)
	}
	return ents, nil
}
