// Package output persists ingredient forecast snapshots. Every sink is append-only.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
)

type SnapshotSink interface {
	Name() string
	Append(ctx context.Context, snapshot models.ForecastSnapshot) error
}

// snapshotDocument is the wire form shared by the JSONL and Kafka sinks.
type snapshotDocument struct {
	ID        string                               `json:"id"`
	Timestamp string                               `json:"timestamp"`
	Forecast  map[string]models.IngredientForecast `json:"forecast"`
}

func encodeSnapshot(s models.ForecastSnapshot) ([]byte, error) {
	forecast := s.Forecast
	if forecast == nil {
		forecast = map[string]models.IngredientForecast{}
	}
	return json.Marshal(snapshotDocument{
		ID:        s.ID,
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		Forecast:  forecast,
	})
}

// DecodeSnapshot parses the wire form written by encodeSnapshot.
func DecodeSnapshot(data []byte) (models.ForecastSnapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.ForecastSnapshot{}, err
	}
	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		return models.ForecastSnapshot{}, fmt.Errorf("invalid snapshot timestamp: %w", err)
	}
	for name, f := range doc.Forecast {
		f.Name = name
		doc.Forecast[name] = f
	}
	return models.ForecastSnapshot{ID: doc.ID, Timestamp: ts.UTC(), Forecast: doc.Forecast}, nil
}

// MultiSink appends to every sink in order. A failing sink does not stop the others; all
// failures are joined into the returned error.
type MultiSink struct {
	sinks   []SnapshotSink
	metrics *metrics.Pipeline
}

func NewMultiSink(m *metrics.Pipeline, sinks ...SnapshotSink) *MultiSink {
	return &MultiSink{sinks: sinks, metrics: m}
}

func (s *MultiSink) Name() string {
	return "multi"
}

func (s *MultiSink) Sinks() []SnapshotSink {
	return s.sinks
}

func (s *MultiSink) Append(ctx context.Context, snapshot models.ForecastSnapshot) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, snapshot); err != nil {
			s.metrics.SinkFailed(sink.Name())
			logging.Error().Err(err).Str("sink", sink.Name()).Str("snapshot", snapshot.ID).Msg("failed to append snapshot")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
