package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/kvstore"
)

// FormulaStore loads and saves formula expressions through a kvstore.Store.
type FormulaStore struct {
	store  kvstore.Store
	logger *zap.Logger

	mu sync.Mutex
}

// NewFormulaStore returns a store backed by store. A nil logger discards output.
func NewFormulaStore(store kvstore.Store, logger *zap.Logger) *FormulaStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormulaStore{store: store, logger: logger.Named("formulas")}
}

// Defaults returns the built-in expression for m.
func (s *FormulaStore) Defaults(m catalog.Model) string {
	f, _ := catalog.DefaultFormula(m)
	return f
}

// DefaultTable returns every built-in expression.
func (s *FormulaStore) DefaultTable() FormulaTable {
	return DefaultFormulaTable()
}

// Load returns the persisted expressions merged over the defaults. Like
// CoefficientStore.Load it never fails.
func (s *FormulaStore) Load(ctx context.Context) FormulaTable {
	defaults := DefaultFormulaTable()

	raw, ok, err := s.store.Get(ctx, FormulasKey)
	if err != nil {
		s.logger.Warn("read formulas, using defaults", zap.String("key", FormulasKey), zap.Error(err))
		return defaults
	}
	if !ok {
		return defaults
	}

	override, invalid, err := decodeFormulas(raw)
	if err != nil {
		s.logger.Warn("decode formulas, using defaults", zap.String("key", FormulasKey), zap.Error(err))
		return defaults
	}
	for _, m := range invalid {
		s.logger.Warn("malformed formula, using default", zap.String("model", m))
	}

	return ResolveFormulas(defaults, override)
}

// Formula returns the resolved expression for m.
func (s *FormulaStore) Formula(ctx context.Context, m catalog.Model) string {
	return s.Load(ctx)[m]
}

// Save writes the full table, replacing whatever was stored.
func (s *FormulaStore) Save(ctx context.Context, table FormulaTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, table)
}

// save is Save for callers already holding mu.
func (s *FormulaStore) save(ctx context.Context, table FormulaTable) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode formula table: %w", err)
	}
	if err := s.store.Set(ctx, FormulasKey, string(payload)); err != nil {
		return fmt.Errorf("save formula table: %w", err)
	}
	return nil
}

// ResetModel restores the expression for m to its default and saves the table.
func (s *FormulaStore) ResetModel(ctx context.Context, m catalog.Model) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.Load(ctx)
	table[m] = s.Defaults(m)
	return s.save(ctx, table)
}

// Update saves expression for m. The expression is stored even when it does not compile;
// pricing with a broken formula yields zero until it is fixed.
func (s *FormulaStore) Update(ctx context.Context, m catalog.Model, expression string) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.Load(ctx)
	table[m] = strings.TrimSpace(expression)
	return s.save(ctx, table)
}

func decodeFormulas(raw string) (FormulaTable, []string, error) {
	var models map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &models); err != nil {
		return nil, nil, fmt.Errorf("decode formula table: %w", err)
	}

	var invalid []string
	out := make(FormulaTable, len(models))
	for name, body := range models {
		var formula *string
		if err := json.Unmarshal(body, &formula); err != nil {
			invalid = append(invalid, name)
			continue
		}
		if formula != nil {
			out[catalog.Model(name)] = *formula
		}
	}
	return out, invalid, nil
}
