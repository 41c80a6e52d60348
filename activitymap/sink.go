package activitymap

import (
	"context"

	"github.com/goliatone/go-stockroom"
	"go.uber.org/zap"
)

// LogSink writes every activity event as one structured audit line.
type LogSink struct {
	logger *zap.Logger
	opts   []Option
}

var _ stockroom.ActivitySink = (*LogSink)(nil)

// NewLogSink returns a sink logging at info level. A nil logger discards.
func NewLogSink(logger *zap.Logger, opts ...Option) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, opts: opts}
}

// Record implements stockroom.ActivitySink.
func (s *LogSink) Record(_ context.Context, event stockroom.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	fields := []zap.Field{
		zap.String("actor_id", record.ActorID),
		zap.String("channel", record.Channel),
		zap.String("object_type", record.ObjectType),
		zap.Time("occurred_at", record.OccurredAt),
	}
	if record.ObjectID != "" {
		fields = append(fields, zap.String("object_id", record.ObjectID))
	}
	if len(record.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", record.Metadata))
	}

	s.logger.Info(record.Verb, fields...)
	return nil
}
