package service

import (
	"context"
	"errors"
	"sync"

	"booking-service/internal/apperror"
	"booking-service/internal/models"
	"booking-service/internal/store"

	"github.com/stretchr/testify/mock"
)

// fakeStore stages writes per transaction and applies them on commit, so a
// rolled back unit of work leaves nothing behind.
type fakeStore struct {
	mu        sync.Mutex
	bookings  map[string]models.Booking
	txs       []*fakeTx
	beginErr  error
	createErr error
	commitErr error
	// onBegin runs under the store lock before the n-th transaction (1-based) starts
	onBegin func(n int)
}

func newFakeStore(seed ...models.Booking) *fakeStore {
	fs := &fakeStore{bookings: make(map[string]models.Booking)}
	for _, b := range seed {
		fs.bookings[b.ID] = b
	}
	return fs
}

type fakeTx struct {
	store      *fakeStore
	pending    map[string]models.Booking
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}
	for id, b := range tx.pending {
		tx.store.bookings[id] = b
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	tx.pending = nil
	return nil
}

func (fs *fakeStore) BeginTx(ctx context.Context) (store.Tx, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.beginErr != nil {
		return nil, fs.beginErr
	}
	if fs.onBegin != nil {
		fs.onBegin(len(fs.txs) + 1)
	}
	tx := &fakeTx{store: fs, pending: make(map[string]models.Booking)}
	fs.txs = append(fs.txs, tx)
	return tx, nil
}

func (fs *fakeStore) CreateBooking(ctx context.Context, tx store.Tx, booking *models.Booking) error {
	if fs.createErr != nil {
		return fs.createErr
	}
	ftx := tx.(*fakeTx)
	booking.Status = models.BookingStatusInitiated
	ftx.pending[booking.ID] = *booking
	return nil
}

func (fs *fakeStore) GetBooking(ctx context.Context, tx store.Tx, id string) (*models.Booking, error) {
	ftx := tx.(*fakeTx)
	if b, ok := ftx.pending[id]; ok {
		return &b, nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b, ok := fs.bookings[id]
	if !ok {
		return nil, apperror.Wrap(apperror.KindNotFound, "booking not found", errors.New("sql: no rows in result set"))
	}
	return &b, nil
}

func (fs *fakeStore) UpdateBooking(ctx context.Context, tx store.Tx, id string, patch models.BookingPatch) error {
	current, err := fs.GetBooking(ctx, tx, id)
	if err != nil {
		return apperror.New(apperror.KindNotFound, "booking not found")
	}
	if patch.Status != nil {
		current.Status = *patch.Status
	}
	tx.(*fakeTx).pending[id] = *current
	return nil
}

func (fs *fakeStore) booking(id string) (models.Booking, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b, ok := fs.bookings[id]
	return b, ok
}

func (fs *fakeStore) lastTx() *fakeTx {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.txs[len(fs.txs)-1]
}

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) FetchItem(ctx context.Context, menuID string) (*models.MenuItem, error) {
	args := m.Called(ctx, menuID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MenuItem), args.Error(1)
}

func (m *mockInventory) Reserve(ctx context.Context, menuID string, quantity int) error {
	args := m.Called(ctx, menuID, quantity)
	return args.Error(0)
}

func (m *mockInventory) Release(ctx context.Context, menuID string, quantity int) error {
	args := m.Called(ctx, menuID, quantity)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.BookingEvent
	err    error
}

func (p *recordingPublisher) record(event *models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingEvent) error {
	return p.record(event)
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, event *models.BookingEvent) error {
	return p.record(event)
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, event *models.BookingEvent) error {
	return p.record(event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}
