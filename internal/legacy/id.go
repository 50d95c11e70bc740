package legacy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedID  = errors.New("legacy id needs at least three segments")
	ErrBadTimestamp = errors.New("legacy id does not start with a millisecond timestamp")
	ErrInvalidPart  = errors.New("invalid legacy id part")
)

// ID is a parsed legacy form document id: {timestampMillis}_{formTag}_{contact}.
type ID struct {
	Raw       string
	Timestamp int64
	FormTag   string
	Contact   string
}

// ParseID splits a legacy id. The first segment is the timestamp, the last
// is the contact, and everything between (rejoined with "_") is the tag.
func ParseID(raw string) (ID, error) {
	parts := strings.Split(raw, "_")
	if len(parts) < 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformedID, raw)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
	}
	return ID{
		Raw:       raw,
		Timestamp: ts,
		FormTag:   strings.Join(parts[1:len(parts)-1], "_"),
		Contact:   parts[len(parts)-1],
	}, nil
}

func (id ID) Time() time.Time {
	return time.UnixMilli(id.Timestamp)
}

// EncodeID builds the id ParseID reads back. The contact must not contain
// "_" since it is recovered as the last segment.
func EncodeID(ts int64, tag, contact string) (string, error) {
	switch {
	case ts < 0:
		return "", fmt.Errorf("%w: negative timestamp", ErrInvalidPart)
	case strings.TrimSpace(tag) == "" || strings.Contains(tag, "/"):
		return "", fmt.Errorf("%w: tag %q", ErrInvalidPart, tag)
	case strings.TrimSpace(contact) == "" || strings.ContainsAny(contact, "_/"):
		return "", fmt.Errorf("%w: contact %q", ErrInvalidPart, contact)
	}
	return fmt.Sprintf("%d_%s_%s", ts, tag, contact), nil
}
