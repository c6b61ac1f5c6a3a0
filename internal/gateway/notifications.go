package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/noticeboard/internal/model"
)

const notificationsPath = "/api/notifications"

var validate = validator.New()

// List fetches every notification the backend currently serves,
// newest first. Expired notifications are expected to be excluded
// server-side.
func (c *Client) List(ctx context.Context) ([]model.Notification, error) {
	body, err := c.do(ctx, http.MethodGet, notificationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	var payloads []notificationPayload
	if err := json.Unmarshal(unwrap(body), &payloads); err != nil {
		return nil, fmt.Errorf("decoding notification list: %w", err)
	}

	items := make([]model.Notification, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, p.toModel())
	}
	return items, nil
}

// Create publishes a new notification and returns it as stored.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*model.Notification, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, notificationsPath, req)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return decodeOne(body)
}

// Update applies a partial update to notification id.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (*model.Notification, error) {
	if id == "" {
		return nil, fmt.Errorf("updating notification: %w", ErrEmptyID)
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid notification update: %w", err)
	}

	body, err := c.do(ctx, http.MethodPut, notificationsPath+"/"+url.PathEscape(id), req)
	if err != nil {
		return nil, fmt.Errorf("updating notification %s: %w", id, err)
	}
	return decodeOne(body)
}

// Delete removes notification id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("deleting notification: %w", ErrEmptyID)
	}
	if _, err := c.do(ctx, http.MethodDelete, notificationsPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

func decodeOne(body []byte) (*model.Notification, error) {
	data := unwrap(body)
	if len(data) == 0 {
		return nil, nil
	}
	var p notificationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding notification: %w", err)
	}
	n := p.toModel()
	return &n, nil
}
