package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rickgao/lcuwatch/internal/model"
)

// GetPresences fetches the raw presences document. The body is checked to be
// valid JSON but otherwise left for model.DecodePresences.
func (c *Client) GetPresences(ctx context.Context) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, model.PresencesURI)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("unmarshal response: invalid json (%d bytes)", len(body))
	}

	return body, nil
}
