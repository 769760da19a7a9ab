// Package customvars keeps the user-defined named constants that every formula can
// reference alongside the built-in variables.
package customvars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/expr"
	"github.com/Simplici0/pipe.works/internal/kvstore"
)

// StorageKey is the key the registry is persisted under, as a JSON array.
const StorageKey = "pipe_custom_variables"

var (
	ErrInvalidIdentifier   = errors.New("custom variables: invalid identifier")
	ErrDuplicateIdentifier = errors.New("custom variables: duplicate identifier")
	ErrInvalidValue        = errors.New("custom variables: invalid value")
	ErrNotFound            = errors.New("custom variables: not found")
)

// Variable is a named constant usable in formulas under VarName.
type Variable struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	VarName string  `json:"varName"`
	Value   float64 `json:"value"`
}

// Registry is the ordered list of custom variables. It is safe for concurrent use.
type Registry struct {
	store  kvstore.Store
	logger *zap.Logger
	newID  func() string

	mu   sync.RWMutex
	vars []Variable
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for load warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUID generator used for new entries.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// Open loads the registry from store. Missing or unreadable data yields an empty registry;
// entries that are no longer valid identifiers, or that repeat one, are dropped.
func Open(ctx context.Context, store kvstore.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("customvars")

	raw, ok, err := store.Get(ctx, StorageKey)
	if err != nil {
		r.logger.Warn("read custom variables, starting empty", zap.Error(err))
		return r
	}
	if !ok {
		return r
	}

	var stored []Variable
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		r.logger.Warn("decode custom variables, starting empty", zap.Error(err))
		return r
	}

	seen := make(map[string]bool, len(stored))
	for _, v := range stored {
		if err := checkIdentifier(v.VarName); err != nil || seen[v.VarName] {
			r.logger.Warn("dropping stored custom variable", zap.String("varName", v.VarName))
			continue
		}
		seen[v.VarName] = true
		r.vars = append(r.vars, v)
	}
	return r
}

// List returns the variables in insertion order.
func (r *Registry) List() []Variable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.vars)
}

// Add appends a variable and persists the registry. varName must already be a bare
// identifier; surrounding whitespace is rejected, not trimmed. A blank name defaults to
// varName.
func (r *Registry) Add(ctx context.Context, name, varName string, value float64) (Variable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = varName
	}

	if err := checkIdentifier(varName); err != nil {
		return Variable{}, err
	}
	if err := checkValue(value); err != nil {
		return Variable{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vars {
		if v.VarName == varName {
			return Variable{}, fmt.Errorf("%w: %q is already defined", ErrDuplicateIdentifier, varName)
		}
	}

	v := Variable{ID: r.newID(), Name: name, VarName: varName, Value: value}
	next := append(slices.Clone(r.vars), v)
	if err := r.persist(ctx, next); err != nil {
		return Variable{}, err
	}
	r.vars = next
	return v, nil
}

// Update sets the value of the variable with the given id and persists the registry.
func (r *Registry) Update(ctx context.Context, id string, value float64) error {
	if err := checkValue(value); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.vars, func(v Variable) bool { return v.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	next := slices.Clone(r.vars)
	next[i].Value = value
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.vars = next
	return nil
}

// Remove deletes the variable with the given id. Removing an unknown id is not an error.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.vars, func(v Variable) bool { return v.ID == id })
	if i < 0 {
		return nil
	}

	next := slices.Delete(slices.Clone(r.vars), i, i+1)
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.vars = next
	return nil
}

// VariableMap returns the variables keyed by identifier.
func (r *Registry) VariableMap() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.vars))
	for _, v := range r.vars {
		out[v.VarName] = v.Value
	}
	return out
}

func (r *Registry) persist(ctx context.Context, vars []Variable) error {
	if vars == nil {
		vars = []Variable{}
	}
	payload, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode custom variables: %w", err)
	}
	if err := r.store.Set(ctx, StorageKey, string(payload)); err != nil {
		return fmt.Errorf("save custom variables: %w", err)
	}
	return nil
}

func checkIdentifier(varName string) error {
	if !expr.IsIdentifier(varName) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, varName)
	}
	if catalog.IsReserved(varName) {
		return fmt.Errorf("%w: %q is a built-in name", ErrDuplicateIdentifier, varName)
	}
	return nil
}

func checkValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	return nil
}
