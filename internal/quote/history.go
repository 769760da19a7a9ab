package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/kvstore"
)

// HistoryKey is the storage key of the quote log.
const HistoryKey = "pipe_calc_history"

// HistoryLimit is the number of entries kept; older ones are discarded on save.
const HistoryLimit = 50

// Entry is one issued quote.
type Entry struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	CompanyName   string    `json:"companyName"`
	ContactPerson string    `json:"contactPerson"`
	TotalPrice    float64   `json:"totalPrice"`
	ProductNames  []string  `json:"selectedProductNames"`
	Quote         Quote     `json:"quote"`
}

// History is the newest-first log of issued quotes.
type History struct {
	store  kvstore.Store
	now    func() time.Time
	idGen  func() string
	logger *zap.Logger

	mu sync.Mutex
}

// HistoryDeps configures a History. Store is required.
type HistoryDeps struct {
	Store  kvstore.Store
	Now    func() time.Time
	IDGen  func() string
	Logger *zap.Logger
}

// NewHistory returns a History over deps.Store.
func NewHistory(deps HistoryDeps) (*History, error) {
	if deps.Store == nil {
		return nil, errors.New("quote history: store is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		store:  deps.Store,
		now:    func() time.Time { return now().UTC() },
		idGen:  idGen,
		logger: logger.Named("history"),
	}, nil
}

// List returns the stored entries, newest first. Unreadable data yields an empty list.
func (h *History) List(ctx context.Context) []Entry {
	raw, ok, err := h.store.Get(ctx, HistoryKey)
	if err != nil {
		h.logger.Warn("read quote history", zap.Error(err))
		return []Entry{}
	}
	if !ok {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		h.logger.Warn("decode quote history", zap.Error(err))
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

// Save records q for the given customer at the head of the log and trims it to
// HistoryLimit entries.
func (h *History) Save(ctx context.Context, companyName, contactPerson string, q Quote) (Entry, error) {
	entry := Entry{
		ID:            h.idGen(),
		Date:          h.now(),
		CompanyName:   companyName,
		ContactPerson: contactPerson,
		TotalPrice:    q.Total,
		ProductNames:  q.ProductNames(),
		Quote:         q,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append([]Entry{entry}, h.List(ctx)...)
	if len(entries) > HistoryLimit {
		entries = entries[:HistoryLimit]
	}
	if err := h.write(ctx, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes the entry with the given id. Unknown ids are ignored.
func (h *History) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.List(ctx)
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return nil
	}
	return h.write(ctx, slices.Delete(entries, i, i+1))
}

func (h *History) write(ctx context.Context, entries []Entry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode quote history: %w", err)
	}
	if err := h.store.Set(ctx, HistoryKey, string(payload)); err != nil {
		return fmt.Errorf("save quote history: %w", err)
	}
	return nil
}
