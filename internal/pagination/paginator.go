// Package pagination pages a tenant collection ordered by createdAt
// descending. Forward paging follows the last document of the current page;
// jumps to pages without a remembered cursor rescan from the start.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"restocrm/internal/docstore"
	"restocrm/internal/metrics"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
)

var (
	ErrNoNextPage     = errors.New("no next page")
	ErrPageOutOfRange = errors.New("page out of range")
)

const orderField = "createdAt"

// Query modes reported to metrics.
const (
	modeFirst  = "first"
	modeCursor = "cursor"
	modeRescan = "rescan"
	modeSearch = "search"
)

// State describes the page last loaded.
type State struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
	IsLoading   bool `json:"isLoading"`
}

type Page[T any] struct {
	Items []T   `json:"items"`
	State State `json:"state"`
}

// Decoder turns a stored document into an item.
type Decoder[T any] func(doc docstore.Document) (T, error)

// Matcher reports whether item matches a lowercased search term.
type Matcher[T any] func(item T, term string) bool

// DecodeJSON decodes the document body into T.
func DecodeJSON[T any](doc docstore.Document) (T, error) {
	var item T
	err := docstore.Decode(doc, &item)
	return item, err
}

// MatchFields builds a Matcher doing case-insensitive substring search over
// the strings fields returns.
func MatchFields[T any](fields func(T) []string) Matcher[T] {
	return func(item T, term string) bool {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), term) {
				return true
			}
		}
		return false
	}
}

type searchResult[T any] struct {
	term  string
	items []T
}

// Paginator keeps cursors for the pages it has visited. Calls are
// serialized; State can be read while a load is running.
type Paginator[T any] struct {
	mu         sync.Mutex
	store      docstore.Store
	collection string
	view       string
	decode     Decoder[T]
	match      Matcher[T]
	logger     *zerolog.Logger
	size       int

	// cursors[n] is the last document of page n.
	cursors map[int]docstore.Document
	search  *searchResult[T]

	stateMu sync.RWMutex
	state   State
	loading atomic.Bool
}

type Option[T any] func(*Paginator[T])

// WithView names the paginator in metrics and logs.
func WithView[T any](view string) Option[T] {
	return func(p *Paginator[T]) { p.view = view }
}

// WithDefaultSize sets the page size used when a caller passes none.
func WithDefaultSize[T any](size int) Option[T] {
	return func(p *Paginator[T]) { p.size = size }
}

func WithLogger[T any](logger *zerolog.Logger) Option[T] {
	return func(p *Paginator[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New pages scope's collection. A nil decoder decodes JSON; a nil matcher
// makes every search return nothing.
func New[T any](store docstore.Store, scope tenant.Scope, collection string, decode Decoder[T], match Matcher[T], opts ...Option[T]) (*Paginator[T], error) {
	path, err := scope.Collection(collection)
	if err != nil {
		return nil, err
	}
	if decode == nil {
		decode = DecodeJSON[T]
	}
	if match == nil {
		match = func(T, string) bool { return false }
	}

	nop := zerolog.Nop()
	p := &Paginator[T]{
		store:      store,
		collection: path,
		view:       collection,
		decode:     decode,
		match:      match,
		logger:     &nop,
		cursors:    make(map[int]docstore.Document),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns a snapshot of the pagination state.
func (p *Paginator[T]) State() State {
	p.stateMu.RLock()
	s := p.state
	p.stateMu.RUnlock()
	s.IsLoading = p.loading.Load()
	return s
}

func (p *Paginator[T]) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Searching reports whether the last load was a non-empty search.
func (p *Paginator[T]) Searching() bool {
	return p.SearchTerm() != ""
}

// SearchTerm is the lowercased term of the active search, "" when paging
// the store.
func (p *Paginator[T]) SearchTerm() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.search == nil {
		return ""
	}
	return p.search.term
}

func (p *Paginator[T]) begin() func() {
	p.loading.Store(true)
	return func() { p.loading.Store(false) }
}

func (p *Paginator[T]) normalizeSize(size int) int {
	if size <= 0 {
		size = p.size
	}
	if size <= 0 {
		return models.DefaultPageSize
	}
	if size > models.MaxPageSize {
		return models.MaxPageSize
	}
	return size
}

func (p *Paginator[T]) pageSize() int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.normalizeSize(p.state.PageSize)
}

// LoadFirstPage resets cursors and any search, then loads page 1.
func (p *Paginator[T]) LoadFirstPage(ctx context.Context, pageSize int) (Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadFirst(ctx, p.normalizeSize(pageSize))
}

func (p *Paginator[T]) loadFirst(ctx context.Context, size int) (Page[T], error) {
	defer p.begin()()

	p.search = nil
	p.cursors = make(map[int]docstore.Document)

	total, err := p.count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	metrics.IncPaginationQuery(p.view, modeFirst)
	docs, err := p.store.Query(ctx, p.query(size, nil))
	if err != nil {
		return Page[T]{}, fmt.Errorf("load first page of %s: %w", p.collection, err)
	}
	return p.settle(1, size, total, docs)
}

// LoadNextPage continues from the cursor of the current page.
func (p *Paginator[T]) LoadNextPage(ctx context.Context) (Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.State()
	if !state.HasNext {
		return Page[T]{}, ErrNoNextPage
	}
	if p.search != nil {
		return p.searchPage(state.CurrentPage+1, state.PageSize)
	}
	return p.goTo(ctx, state.CurrentPage+1)
}

// LoadPreviousPage is GoToPage(current-1).
func (p *Paginator[T]) LoadPreviousPage(ctx context.Context) (Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.State()
	if !state.HasPrevious {
		return Page[T]{}, fmt.Errorf("%w: already on page %d", ErrPageOutOfRange, state.CurrentPage)
	}
	if p.search != nil {
		return p.searchPage(state.CurrentPage-1, state.PageSize)
	}
	return p.goTo(ctx, state.CurrentPage-1)
}

// GoToPage loads page n (1-based). Page 1 is LoadFirstPage with the current
// page size. Without a remembered cursor for page n-1 the first n pages are
// read again and page n is sliced out of them.
func (p *Paginator[T]) GoToPage(ctx context.Context, n int) (Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 1 {
		return Page[T]{}, fmt.Errorf("%w: %d", ErrPageOutOfRange, n)
	}
	if p.search != nil {
		return p.searchPage(n, p.pageSize())
	}
	return p.goTo(ctx, n)
}

func (p *Paginator[T]) goTo(ctx context.Context, n int) (Page[T], error) {
	size := p.pageSize()
	if n == 1 {
		return p.loadFirst(ctx, size)
	}

	defer p.begin()()

	total, err := p.count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	if n > pages(total, size) {
		return Page[T]{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, pages(total, size))
	}

	if cursor, ok := p.cursors[n-1]; ok {
		metrics.IncPaginationQuery(p.view, modeCursor)
		docs, err := p.store.Query(ctx, p.query(size, &cursor))
		if err != nil {
			return Page[T]{}, fmt.Errorf("load page %d of %s: %w", n, p.collection, err)
		}
		return p.settle(n, size, total, docs)
	}

	metrics.IncPaginationQuery(p.view, modeRescan)
	p.logger.Debug().Str("view", p.view).Int("page", n).Int("scan", n*size).Msg("no cursor for page, rescanning")
	docs, err := p.store.Query(ctx, p.query(n*size, nil))
	if err != nil {
		return Page[T]{}, fmt.Errorf("rescan %s to page %d: %w", p.collection, n, err)
	}

	start := (n - 1) * size
	if start >= len(docs) {
		return Page[T]{}, fmt.Errorf("%w: %d", ErrPageOutOfRange, n)
	}
	for k := 1; k*size <= len(docs) && k < n; k++ {
		p.cursors[k] = docs[k*size-1]
	}
	return p.settle(n, size, total, docs[start:])
}

// Search loads every document, keeps those matching term and pages the
// result in memory. Next, previous and page jumps stay in memory until the
// next LoadFirstPage. An empty term is LoadFirstPage.
func (p *Paginator[T]) Search(ctx context.Context, term string, pageSize int) (Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.normalizeSize(pageSize)
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return p.loadFirst(ctx, size)
	}

	defer p.begin()()
	metrics.IncPaginationQuery(p.view, modeSearch)
	docs, err := p.store.Query(ctx, docstore.Query{Collection: p.collection, OrderBy: orderField, Desc: true})
	if err != nil {
		return Page[T]{}, fmt.Errorf("search %s: %w", p.collection, err)
	}

	var items []T
	for _, doc := range docs {
		item, err := p.decode(doc)
		if err != nil {
			p.logger.Warn().Err(err).Str("id", doc.ID).Msg("skipping undecodable document")
			continue
		}
		if p.match(item, term) {
			items = append(items, item)
		}
	}
	p.search = &searchResult[T]{term: term, items: items}
	return p.searchPage(1, size)
}

func (p *Paginator[T]) searchPage(n, size int) (Page[T], error) {
	items := p.search.items
	total := len(items)
	if n < 1 || (n > 1 && n > pages(total, size)) {
		return Page[T]{}, fmt.Errorf("%w: %d", ErrPageOutOfRange, n)
	}

	start := (n - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	page := append([]T(nil), items[start:end]...)

	state := newState(n, size, total)
	p.setState(state)
	return Page[T]{Items: page, State: state}, nil
}

func (p *Paginator[T]) query(limit int, after *docstore.Document) docstore.Query {
	return docstore.Query{
		Collection: p.collection,
		OrderBy:    orderField,
		Desc:       true,
		Limit:      limit,
		StartAfter: after,
	}
}

func (p *Paginator[T]) count(ctx context.Context) (int, error) {
	total, err := p.store.Count(ctx, p.collection)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", p.collection, err)
	}
	return total, nil
}

// settle decodes up to size docs as page n and remembers its cursor.
func (p *Paginator[T]) settle(n, size, total int, docs []docstore.Document) (Page[T], error) {
	if len(docs) > size {
		docs = docs[:size]
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := p.decode(doc)
		if err != nil {
			return Page[T]{}, fmt.Errorf("decode %s/%s: %w", p.collection, doc.ID, err)
		}
		items = append(items, item)
	}
	if len(docs) > 0 {
		p.cursors[n] = docs[len(docs)-1]
	}

	state := newState(n, size, total)
	p.setState(state)
	return Page[T]{Items: items, State: state}, nil
}

func newState(n, size, total int) State {
	return State{
		CurrentPage: n,
		PageSize:    size,
		TotalItems:  total,
		TotalPages:  pages(total, size),
		HasNext:     n*size < total,
		HasPrevious: n > 1,
	}
}

func pages(total, size int) int {
	return (total + size - 1) / size
}
