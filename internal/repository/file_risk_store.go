package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
)

// FileRiskStore keeps one JSON file per record in a shared directory:
// <ID>_delta.json for pipeline deltas and <ID>_TRADE_DIRECTION.json for hedge biases.
// Files are replaced by rename so readers see either the old or the new record.
type FileRiskStore struct {
	dir string
}

// NewFileRiskStore creates dir if needed.
func NewFileRiskStore(dir string) (*FileRiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("risk dir: %w", err)
	}
	return &FileRiskStore{dir: dir}, nil
}

func (s *FileRiskStore) deltaPath(id string) string {
	return filepath.Join(s.dir, id+"_delta.json")
}

func (s *FileRiskStore) hedgePath(id string) string {
	return filepath.Join(s.dir, id+"_TRADE_DIRECTION.json")
}

func (s *FileRiskStore) PublishDelta(_ context.Context, r models.DeltaReport) error {
	if r.Instrument == "" || strings.ContainsAny(r.Instrument, `/\`) {
		return fmt.Errorf("publish delta: invalid instrument %q", r.Instrument)
	}
	return writeJSON(s.deltaPath(r.Instrument), r)
}

// LoadDeltas skips files that are absent or undecodable; the caller treats them as missing.
// A file holding a bare number is accepted as a delta with the file's mtime.
func (s *FileRiskStore) LoadDeltas(ctx context.Context, instruments []string) (map[string]models.DeltaReport, error) {
	out := make(map[string]models.DeltaReport, len(instruments))
	for _, id := range instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.deltaPath(id)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		r, ok := decodeDelta(data)
		if !ok {
			continue
		}
		r.Instrument = id
		if r.UpdatedAt.IsZero() {
			if fi, err := os.Stat(path); err == nil {
				r.UpdatedAt = fi.ModTime()
			}
		}
		out[id] = r
	}
	return out, nil
}

func decodeDelta(data []byte) (models.DeltaReport, bool) {
	var r models.DeltaReport
	if err := json.Unmarshal(data, &r); err == nil {
		return r, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return models.DeltaReport{}, false
	}
	return models.DeltaReport{Delta: &v}, true
}

// PublishHedge replaces each member's file. Every file is atomic on its own.
func (s *FileRiskStore) PublishHedge(_ context.Context, biases []models.HedgeBias) error {
	for _, b := range biases {
		if err := writeJSON(s.hedgePath(b.Instrument), b); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileRiskStore) LoadHedge(_ context.Context, instrument string) (models.HedgeBias, error) {
	data, err := os.ReadFile(s.hedgePath(instrument))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.HedgeBias{}, domrepo.ErrNotFound
		}
		return models.HedgeBias{}, fmt.Errorf("read hedge %s: %w", instrument, err)
	}
	var b models.HedgeBias
	if err := json.Unmarshal(data, &b); err != nil {
		return models.HedgeBias{}, fmt.Errorf("decode hedge %s: %w", instrument, err)
	}
	b.Instrument = instrument
	return b, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ domrepo.RiskStore = (*FileRiskStore)(nil)
