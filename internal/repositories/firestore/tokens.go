package firestore

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// List cursors encode the sort key of the last returned document. Queries
// order by createdAt descending with the document ID as tie-breaker, so the
// token carries both.
func encodeListToken(ts time.Time, id string) string {
	raw := fmt.Sprintf("%s|%s", ts.UTC().Format(time.RFC3339Nano), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeListToken(token string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decode token: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return time.Time{}, "", fmt.Errorf("malformed token")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decode token timestamp: %w", err)
	}
	return ts, parts[1], nil
}
