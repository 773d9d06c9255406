package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

// LocalEngine is a stand-in matching engine for development. It decodes and
// verifies every file it is given, remembers the ingested keys and matches
// them against its own key history.
type LocalEngine struct {
	historyPath string
	trusted     []export.VerificationKey
	log         logging.Logger

	mu       sync.Mutex
	ingested map[[keys.KeyLength]byte]keys.DiagnosisKey
}

// NewLocalEngine reads the device's own keys from historyPath, a JSON array
// of api.ExposureKey. With no trusted keys, signatures are not checked.
func NewLocalEngine(historyPath string, trusted []export.VerificationKey, log logging.Logger) *LocalEngine {
	return &LocalEngine{
		historyPath: historyPath,
		trusted:     trusted,
		log:         log.With("module", "local_engine"),
		ingested:    make(map[[keys.KeyLength]byte]keys.DiagnosisKey),
	}
}

func (e *LocalEngine) ProvideDiagnosisKeys(ctx context.Context, paths []string) error {
	var batch []keys.DiagnosisKey
	for _, p := range paths {
		a, err := export.ReadFile(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRejected, p, err)
		}
		if len(e.trusted) > 0 {
			if err := export.Verify(a, e.trusted); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrRejected, p, err)
			}
		}
		batch = append(batch, a.Batch.Keys...)
	}

	own, err := e.TemporaryExposureKeyHistory(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, k := range batch {
		e.ingested[[keys.KeyLength]byte(k.KeyData())] = k
	}

	matches := 0
	for _, k := range own {
		if _, ok := e.ingested[[keys.KeyLength]byte(k.KeyData())]; ok {
			matches++
		}
	}

	e.log.Info(ctx, "diagnosis keys ingested", "files", len(paths), "keys", len(batch), "total", len(e.ingested), "matches", matches)
	return nil
}

// Ingested returns how many distinct keys were provided so far.
func (e *LocalEngine) Ingested() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ingested)
}

func (e *LocalEngine) TemporaryExposureKeyHistory(context.Context) ([]keys.DiagnosisKey, error) {
	if e.historyPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(e.historyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var wire []api.ExposureKey
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", e.historyPath, err)
	}
	return api.ToKeys(wire)
}
