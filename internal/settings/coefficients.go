package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/kvstore"
)

// CoefficientStore loads and saves coefficient records through a kvstore.Store.
type CoefficientStore struct {
	store  kvstore.Store
	logger *zap.Logger

	// mu serialises read-modify-write cycles.
	mu sync.Mutex
}

// NewCoefficientStore returns a store backed by store. A nil logger discards output.
func NewCoefficientStore(store kvstore.Store, logger *zap.Logger) *CoefficientStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoefficientStore{store: store, logger: logger.Named("coefficients")}
}

// Defaults returns a copy of the built-in record for m.
func (s *CoefficientStore) Defaults(m catalog.Model) catalog.Coefficients {
	return catalog.DefaultCoefficients(m)
}

// DefaultTable returns a copy of every built-in record.
func (s *CoefficientStore) DefaultTable() CoefficientTable {
	return DefaultCoefficientTable()
}

// Load returns the persisted table merged over the defaults. It never fails: when the
// stored value is missing or unreadable the defaults are returned and the problem is
// logged.
func (s *CoefficientStore) Load(ctx context.Context) CoefficientTable {
	defaults := DefaultCoefficientTable()

	raw, ok, err := s.store.Get(ctx, CoefficientsKey)
	if err != nil {
		s.logger.Warn("read coefficients, using defaults", zap.String("key", CoefficientsKey), zap.Error(err))
		return defaults
	}
	if !ok {
		return defaults
	}

	override, invalid, err := decodeCoefficients(raw)
	if err != nil {
		s.logger.Warn("decode coefficients, using defaults", zap.String("key", CoefficientsKey), zap.Error(err))
		return defaults
	}
	for _, m := range invalid {
		s.logger.Warn("malformed coefficient record, using defaults", zap.String("model", m))
	}

	return ResolveCoefficients(defaults, override)
}

// Coefficients returns the resolved record for m.
func (s *CoefficientStore) Coefficients(ctx context.Context, m catalog.Model) catalog.Coefficients {
	return s.Load(ctx)[m]
}

// Save writes the full table, replacing whatever was stored. Non-finite values cannot be
// encoded and make Save fail.
func (s *CoefficientStore) Save(ctx context.Context, table CoefficientTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, table)
}

// save is Save for callers already holding mu.
func (s *CoefficientStore) save(ctx context.Context, table CoefficientTable) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode coefficient table: %w", err)
	}
	if err := s.store.Set(ctx, CoefficientsKey, string(payload)); err != nil {
		return fmt.Errorf("save coefficient table: %w", err)
	}
	return nil
}

// ResetModel restores the record for m to its default and saves the table.
func (s *CoefficientStore) ResetModel(ctx context.Context, m catalog.Model) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.Load(ctx)
	table[m] = catalog.DefaultCoefficients(m)
	return s.save(ctx, table)
}

// Update writes values over the current record for m and saves the table. Only the
// coefficient names the model defines are accepted, and every value must be finite.
func (s *CoefficientStore) Update(ctx context.Context, m catalog.Model, values map[string]float64) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
	defaults := catalog.DefaultCoefficients(m)
	for name, v := range values {
		if _, ok := defaults[name]; !ok {
			return fmt.Errorf("%w: %s has no coefficient %q", ErrUnknownCoefficient, m, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidValue, name, v)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.Load(ctx)
	record := table[m]
	for name, v := range values {
		record[name] = v
	}
	table[m] = record
	return s.save(ctx, table)
}

// decodeCoefficients parses a stored table. JSON nulls count as missing. Models whose
// record cannot be decoded are left out and reported in invalid so the caller falls back
// to the default for them alone.
func decodeCoefficients(raw string) (CoefficientTable, []string, error) {
	var models map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &models); err != nil {
		return nil, nil, fmt.Errorf("decode coefficient table: %w", err)
	}

	var invalid []string
	out := make(CoefficientTable, len(models))
	for name, body := range models {
		var record map[string]*float64
		if err := json.Unmarshal(body, &record); err != nil {
			invalid = append(invalid, name)
			continue
		}
		values := make(catalog.Coefficients, len(record))
		for k, v := range record {
			if v != nil {
				values[k] = *v
			}
		}
		out[catalog.Model(name)] = values
	}
	return out, invalid, nil
}
