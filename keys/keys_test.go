package keys

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thisisjab/logtable/entity"
)

func TestTicksMatchKnownValues(t *testing.T) {
	tests := map[time.Time]int64{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC):   621355968000000000,
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC):   630822816000000000,
		time.Date(2000, 1, 1, 0, 0, 0, 100, time.UTC): 630822816000000001,
	}

	for tm, want := range tests {
		if got := Ticks(tm); got != want {
			t.Errorf("Ticks(%v) = %d, want %d", tm, got, want)
		}
	}
}

func TestReverseTicksIsFixedWidth(t *testing.T) {
	times := []time.Time{
		time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(9999, 12, 31, 23, 59, 59, 999999900, time.UTC),
	}
	for _, tm := range times {
		if got := ReverseTicks(tm); len(got) != 19 {
			t.Errorf("ReverseTicks(%v) = %q has width %d", tm, got, len(got))
		}
	}
	if got := ReverseTicks(times[2]); got != "0000000000000000000" {
		t.Errorf("ReverseTicks(max) = %q", got)
	}
}

func TestReverseTimeKeysSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	steps := []time.Duration{0, 100 * time.Nanosecond, time.Millisecond, time.Second, time.Hour, 24 * 365 * time.Hour}

	partition := ReverseTime{}
	row := ReverseTimeUnique{}
	for _, d := range steps[1:] {
		older := entity.LogRecord{Timestamp: base}
		newer := entity.LogRecord{Timestamp: base.Add(d)}

		if !(partition.Key(older) > partition.Key(newer)) {
			t.Errorf("partition key of t1 should sort after t1+%v: %q <= %q", d, partition.Key(older), partition.Key(newer))
		}
		if !(row.Key(older) > row.Key(newer)) {
			t.Errorf("row key of t1 should sort after t1+%v", d)
		}
	}
}

func TestReverseTimeUsesClockWithoutTimestamp(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := ReverseTime{Now: func() time.Time { return now }}
	if got, want := s.Key(entity.LogRecord{}), ReverseTicks(now); got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestReverseTimeUniqueDisambiguatesSameTick(t *testing.T) {
	rec := entity.LogRecord{Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := ReverseTimeUnique{}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		k := s.Key(rec)
		if seen[k] {
			t.Fatalf("duplicate row key %q", k)
		}
		seen[k] = true

		parts := strings.Split(k, RowSeparator)
		if len(parts) != 2 {
			t.Fatalf("row key %q must have exactly two parts", k)
		}
		if parts[0] != ReverseTicks(rec.Timestamp) {
			t.Fatalf("tick part = %q", parts[0])
		}
		if _, err := uuid.Parse(parts[1]); err != nil {
			t.Fatalf("suffix %q is not a uuid: %v", parts[1], err)
		}
	}
}

func TestReverseTimeUniqueUsesIDSource(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-4b5a-4c6d-8e7f-901234567890")
	s := ReverseTimeUnique{NewID: func() uuid.UUID { return id }}
	rec := entity.LogRecord{Timestamp: time.Unix(0, 0)}

	want := ReverseTicks(rec.Timestamp) + "_" + id.String()
	if got := s.Key(rec); got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestLoggerNamePartition(t *testing.T) {
	rec := entity.LogRecord{LoggerName: "app.http"}

	if got := (LoggerName{}).Key(rec); got != "app.http" {
		t.Errorf("no prefix: %q", got)
	}
	if got := (LoggerName{Prefix: "prod"}).Key(rec); got != "prod.app.http" {
		t.Errorf("with prefix: %q", got)
	}
}

func TestParseStrategies(t *testing.T) {
	p, err := ParsePartitionStrategy("logger", "svc")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if got := p.Key(entity.LogRecord{LoggerName: "x"}); got != "svc.x" {
		t.Errorf("logger strategy key = %q", got)
	}

	if _, err := ParsePartitionStrategy("reverse-time", ""); err != nil {
		t.Errorf("reverse-time: %v", err)
	}
	if _, err := ParsePartitionStrategy("random", ""); err == nil {
		t.Errorf("expected error for unknown partition strategy")
	}
	if _, err := ParseRowStrategy("sequential"); err == nil {
		t.Errorf("expected error for unknown row strategy")
	}

	fn := StrategyFunc(func(r entity.LogRecord) string { return r.Level.String() })
	if got := fn.Key(entity.LogRecord{Level: entity.LogLevelInfo}); got != "INFO" {
		t.Errorf("StrategyFunc key = %q", got)
	}
}
