package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeCursor marks the last row of a page in a (timestamp desc, id desc) listing.
type timeCursor struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// EncodeTimeCursor returns the page token that resumes after the row (at, id).
func EncodeTimeCursor(at time.Time, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("pagination: cursor id is required")
	}
	data, err := json.Marshal(timeCursor{At: at.UTC(), ID: id})
	if err != nil {
		return "", fmt.Errorf("pagination: encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeTimeCursor is the inverse of EncodeTimeCursor. An empty token means the first page
// and decodes to a zero time and empty id.
func DecodeTimeCursor(token string) (time.Time, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor timeCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.ID == "" || cursor.At.IsZero() {
		return time.Time{}, "", ErrInvalidPageToken
	}
	return cursor.At, cursor.ID, nil
}
