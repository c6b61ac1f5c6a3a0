package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/noticeboard/internal/model"
)

// timeLayouts are tried in order when reading timestamps from the API.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// opaqueID accepts identifiers sent as either JSON strings or numbers.
type opaqueID string

func (id *opaqueID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = opaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = opaqueID(n.String())
	return nil
}

// notificationPayload is a notification as sent over the wire.
type notificationPayload struct {
	ID          opaqueID `json:"id"`
	MongoID     opaqueID `json:"_id"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	CreatedAt   string   `json:"createdAt"`
	ExpiresAt   *string  `json:"expiresAt"`
	Audience    string   `json:"audience"`
	CreatorName string   `json:"creatorName"`
}

// toModel converts the wire payload. Timestamps that fail to parse become
// the zero time rather than failing the whole list.
func (p notificationPayload) toModel() model.Notification {
	id := p.ID
	if id == "" {
		id = p.MongoID
	}

	n := model.Notification{
		ID:          string(id),
		Title:       p.Title,
		Message:     p.Message,
		CreatedAt:   parseTime(p.CreatedAt),
		Audience:    model.Audience(strings.TrimSpace(p.Audience)),
		CreatorName: p.CreatorName,
	}
	if p.ExpiresAt != nil && *p.ExpiresAt != "" {
		if t := parseTime(*p.ExpiresAt); !t.IsZero() {
			n.ExpiresAt = &t
		}
	}
	return n
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// Some backends send epoch milliseconds.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// errorResponse covers the common error body shapes returned by the API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// envelope is the {"data": ...} wrapper some endpoints use.
type envelope struct {
	Data          json.RawMessage `json:"data"`
	Notifications json.RawMessage `json:"notifications"`
}

// unwrap returns the payload inside an envelope, or body itself when it is
// not wrapped.
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data
	}
	if len(env.Notifications) > 0 && !bytes.Equal(env.Notifications, []byte("null")) {
		return env.Notifications
	}
	return trimmed
}

// CreateRequest is the body for authoring a new notification.
type CreateRequest struct {
	Title     string         `json:"title" validate:"required,min=3,max=200"`
	Message   string         `json:"message" validate:"required"`
	Audience  model.Audience `json:"audience" validate:"required,oneof=all admin teacher student"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Title     *string         `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Message   *string         `json:"message,omitempty" validate:"omitempty,min=1"`
	Audience  *model.Audience `json:"audience,omitempty" validate:"omitempty,oneof=all admin teacher student"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}
