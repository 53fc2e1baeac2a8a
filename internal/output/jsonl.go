package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrisdamba/messforecast/internal/models"
)

// JSONLSink appends one JSON document per line to a local file.
type JSONLSink struct {
	mu   sync.Mutex
	path string
}

// NewJSONLSink writes to <basePath>/<collection>.jsonl.
func NewJSONLSink(basePath, collection string) *JSONLSink {
	return &JSONLSink{path: filepath.Join(basePath, collection+".jsonl")}
}

func (s *JSONLSink) Name() string {
	return models.SinkJSONL
}

func (s *JSONLSink) Path() string {
	return s.path
}

func (s *JSONLSink) Append(ctx context.Context, snapshot models.ForecastSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := encodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	return f.Close()
}

// ReadAll returns every snapshot in the file in append order.
func (s *JSONLSink) ReadAll() ([]models.ForecastSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []models.ForecastSnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		snap, err := DecodeSnapshot(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", s.path, err)
		}
		out = append(out, snap)
	}
	return out, scanner.Err()
}
