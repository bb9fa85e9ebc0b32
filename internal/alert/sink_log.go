package alert

import (
	"context"
	"log/slog"

	"github.com/tphakala/eas-monitor/internal/conf"
	"github.com/tphakala/eas-monitor/internal/logging"
)

// LogSink journals every alert as one JSON line to a rotating file.
type LogSink struct {
	logger *slog.Logger
	close  func() error
}

// NewLogSink opens the journal at path with the rotation policy of rotation.
func NewLogSink(path string, rotation conf.LogConfig) (*LogSink, error) {
	logger, closer, err := logging.NewFileLogger(path, "alert-journal", slog.LevelInfo, rotation)
	if err != nil {
		return nil, err
	}
	return &LogSink{logger: logger, close: closer}, nil
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, a Alert) error {
	attrs := []slog.Attr{
		slog.String("id", a.ID),
		slog.String("kind", string(a.Kind)),
		slog.String("source_id", a.SourceID),
		slog.Time("received", a.Received),
		slog.String("header", a.Header()),
	}
	if m := a.Message; m != nil {
		locations := make([]string, 0, len(m.Locations))
		for _, l := range m.Locations {
			locations = append(locations, l.String())
		}
		attrs = append(attrs,
			slog.String("originator", string(m.Originator)),
			slog.String("event", m.Event),
			slog.String("event_name", m.EventName()),
			slog.Any("locations", locations),
			slog.Time("issued", m.Issued),
			slog.Time("expires", m.Expires()),
			slog.String("station", m.Station),
			slog.String("confidence", string(m.Confidence)),
			slog.Int("agreeing", m.Agreeing),
		)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, a.Title(), attrs...)
	return nil
}

func (s *LogSink) Close() error {
	return s.close()
}
