package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/expr"
)

// BackupVersion is the document version written by Export and accepted by Import.
const BackupVersion = 1

// Backup is the YAML document holding every formula and coefficient record.
type Backup struct {
	Version      int                                  `yaml:"version"`
	Coefficients map[catalog.Model]map[string]float64 `yaml:"coefficients"`
	Formulas     map[catalog.Model]string             `yaml:"formulas"`
}

// Export renders the current coefficient and formula tables as YAML.
func Export(ctx context.Context, coefficients *CoefficientStore, formulas *FormulaStore) ([]byte, error) {
	doc := Backup{
		Version:      BackupVersion,
		Coefficients: make(map[catalog.Model]map[string]float64),
		Formulas:     map[catalog.Model]string(formulas.Load(ctx)),
	}
	for m, record := range coefficients.Load(ctx) {
		doc.Coefficients[m] = record
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode settings backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode settings backup: %w", err)
	}
	return buf.Bytes(), nil
}

// Import validates a YAML backup and replaces both tables with it. Models missing from the
// document are restored to their defaults. Nothing is written unless the whole document is
// valid: every model is known, every coefficient belongs to its model and is finite, and
// every expression compiles.
func Import(ctx context.Context, data []byte, coefficients *CoefficientStore, formulas *FormulaStore) error {
	var doc Backup
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if doc.Version != BackupVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, doc.Version)
	}

	override := make(CoefficientTable, len(doc.Coefficients))
	for m, record := range doc.Coefficients {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownModel, m)
		}
		defaults := catalog.DefaultCoefficients(m)
		for name, v := range record {
			if _, ok := defaults[name]; !ok {
				return fmt.Errorf("%w: %s has no coefficient %q", ErrUnknownCoefficient, m, name)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s.%s = %v", ErrInvalidValue, m, name, v)
			}
		}
		override[m] = record
	}

	for m, formula := range doc.Formulas {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownModel, m)
		}
		if _, err := expr.Compile(formula); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidFormula, m, err)
		}
	}

	coefficients.mu.Lock()
	defer coefficients.mu.Unlock()
	formulas.mu.Lock()
	defer formulas.mu.Unlock()

	previous, hadPrevious, err := coefficients.store.Get(ctx, CoefficientsKey)
	if err != nil {
		return fmt.Errorf("import settings backup: read coefficient table: %w", err)
	}

	if err := coefficients.save(ctx, ResolveCoefficients(DefaultCoefficientTable(), override)); err != nil {
		return fmt.Errorf("import settings backup: %w", err)
	}
	if err := formulas.save(ctx, ResolveFormulas(DefaultFormulaTable(), doc.Formulas)); err != nil {
		// Put the coefficients back so the import leaves nothing half applied.
		var restoreErr error
		if hadPrevious {
			restoreErr = coefficients.store.Set(ctx, CoefficientsKey, previous)
		} else {
			restoreErr = coefficients.save(ctx, DefaultCoefficientTable())
		}
		if restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restore coefficient table: %w", restoreErr))
		}
		return fmt.Errorf("import settings backup: %w", err)
	}
	return nil
}
