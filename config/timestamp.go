package config

import "time"

// TimestampGenerator mirrors the teacher's pattern for deterministic time in
// tests (catalyst-api's config.TimestampGenerator).
type TimestampGenerator interface {
	GetTime() time.Time
}

type RealTimestampGenerator struct{}

func (t RealTimestampGenerator) GetTime() time.Time {
	return time.Now()
}

type FixedTimestampGenerator struct {
	Timestamp time.Time
}

func (t FixedTimestampGenerator) GetTime() time.Time {
	return t.Timestamp
}
