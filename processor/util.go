package processor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/thisisjab/logtable/entity"
)

func parseLevel(level string) entity.LogLevel {
	l, _ := entity.ParseLogLevel(level)
	return l
}

// parseTimestamp reads a timestamp written in layout. The special layouts
// "unix", "unix_ms" and "unix_ns" read integer epoch values.
func parseTimestamp(layout, value string) (time.Time, error) {
	switch layout {
	case "unix", "unix_ms", "unix_ns":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse %s timestamp %q: %w", layout, value, err)
		}
		return epochTime(layout, n), nil
	default:
		t, err := time.Parse(layout, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse timestamp %q: %w", value, err)
		}
		return t, nil
	}
}

func epochTime(layout string, n int64) time.Time {
	switch layout {
	case "unix_ms":
		return time.UnixMilli(n).UTC()
	case "unix_ns":
		return time.Unix(0, n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}
