package store

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/example/video-platform/internal/engagement"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Opaque keyset cursor over (created_at, id).

func encodeCursor(t time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", t.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(c)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", engagement.ErrBadCursor, err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", engagement.ErrBadCursor
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", engagement.ErrBadCursor, err)
	}
	return time.Unix(0, nanos).UTC(), parts[1], nil
}
