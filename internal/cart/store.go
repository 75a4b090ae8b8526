package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/tasks"
)

const persistTaskName = "cart-persist"

type taskRunner interface {
	Go(ctx context.Context, name string, fn tasks.Func)
}

// Snapshot is an immutable view of a cart at one point in time.
type Snapshot struct {
	Session Session
	Items   []Item
}

func (s Snapshot) Subtotal() decimal.Decimal {
	return Subtotal(s.Items)
}

func (s Snapshot) Count() int {
	return Count(s.Items)
}

// Empty reports whether there is nothing to check out.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Listener receives a snapshot after every change.
type Listener func(Snapshot)

// Store holds one session's cart. The in-memory items are authoritative;
// when the session is authenticated each change is mirrored to the
// DocumentStore in the background and failures there never undo a change.
type Store struct {
	mu        sync.Mutex
	session   Session
	items     []Item
	version   uint64
	listeners map[int]Listener
	nextID    int

	docs  DocumentStore
	tasks taskRunner
	logg  *logger.Logger

	persistMu sync.Mutex
	persisted uint64
}

// NewStore returns an empty guest cart. docs and runner may be nil, in
// which case nothing is mirrored.
func NewStore(docs DocumentStore, runner taskRunner, logg *logger.Logger) *Store {
	return &Store{
		items:     []Item{},
		listeners: map[int]Listener{},
		docs:      docs,
		tasks:     runner,
		logg:      logg,
	}
}

// AddItem increments the quantity of the line with the same id, or appends
// a new line with quantity 1.
func (s *Store) AddItem(ctx context.Context, in NewItem) (Snapshot, error) {
	item, err := in.normalize()
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity++
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, Item{
			ID:       item.ID,
			Title:    item.Title,
			Price:    item.Price,
			Image:    item.Image,
			Quantity: 1,
		})
	}
	snap, version := s.commitLocked()
	s.mu.Unlock()

	s.afterChange(ctx, snap, version)
	return snap, nil
}

// RemoveItem drops the line with id. Removing an unknown id changes nothing.
func (s *Store) RemoveItem(ctx context.Context, id string) Snapshot {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	snap, version := s.commitLocked()
	s.mu.Unlock()

	s.afterChange(ctx, snap, version)
	return snap
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.items = []Item{}
	snap, version := s.commitLocked()
	s.mu.Unlock()

	s.afterChange(ctx, snap, version)
	return snap
}

// Authenticate binds the cart to userID and loads the user's remote cart
// once. A repeated call for the same user is a no-op. When the remote
// document has items they replace the in-memory ones; otherwise the current
// items are kept and mirrored. Load failures are logged and ignored.
// It reports whether the remote items were applied.
func (s *Store) Authenticate(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	s.mu.Lock()
	if current, ok := s.session.UserID(); ok && current == userID {
		s.mu.Unlock()
		return false
	}
	if !s.session.IsGuest() {
		s.items = []Item{}
	}
	s.session = Authenticated(userID)
	snap, loadVersion := s.commitLocked()
	s.mu.Unlock()
	s.notify(snap)

	if s.docs == nil {
		return false
	}

	ctx = s.withUser(ctx, userID)
	remote, found, err := s.docs.Load(ctx, userID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "cart.load.failed", err)
		}
		return false
	}

	s.mu.Lock()
	if current, ok := s.session.UserID(); !ok || current != userID || s.version != loadVersion {
		// the session changed while loading; local state wins
		snap, version := s.snapshotLocked(), s.version
		s.mu.Unlock()
		s.persist(ctx, snap, version)
		return false
	}
	if !found {
		snap, version := s.snapshotLocked(), s.version
		s.mu.Unlock()
		if !snap.Empty() {
			s.persist(ctx, snap, version)
		}
		return false
	}
	s.items = cloneItems(remote)
	snap, version := s.commitLocked()
	s.mu.Unlock()

	s.markPersisted(version)
	s.notify(snap)
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "items", len(snap.Items)), "cart.loaded")
	}
	return true
}

// SignOut clears the in-memory cart and returns the session to guest. The
// remote document is left as it is.
func (s *Store) SignOut(ctx context.Context) Snapshot {
	s.mu.Lock()
	s.session = Guest()
	s.items = []Item{}
	snap, _ := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Items() []Item {
	return s.Snapshot().Items
}

// Subtotal is recomputed from the items on every call.
func (s *Store) Subtotal() decimal.Decimal {
	return s.Snapshot().Subtotal()
}

func (s *Store) Count() int {
	return s.Snapshot().Count()
}

func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Subscribe registers fn for change notifications and returns a func that
// removes it. Listeners run on the mutating goroutine, after the lock is
// released.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Session: s.session, Items: cloneItems(s.items)}
}

func (s *Store) commitLocked() (Snapshot, uint64) {
	s.version++
	return s.snapshotLocked(), s.version
}

func (s *Store) afterChange(ctx context.Context, snap Snapshot, version uint64) {
	s.notify(snap)
	s.persist(ctx, snap, version)
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// persist mirrors snap in the background. A write older than one already
// stored is skipped so a slow task cannot roll the document back.
func (s *Store) persist(ctx context.Context, snap Snapshot, version uint64) {
	userID, ok := snap.Session.UserID()
	if !ok || s.docs == nil || s.tasks == nil {
		return
	}
	ctx = s.withUser(ctx, userID)
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "cart_version", version)
	}
	items := snap.Items

	s.tasks.Go(ctx, persistTaskName, func(taskCtx context.Context) error {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if version <= s.persisted {
			return nil
		}
		if err := s.docs.SaveItems(taskCtx, userID, items); err != nil {
			return err
		}
		s.persisted = version
		return nil
	})
}

func (s *Store) markPersisted(version uint64) {
	s.persistMu.Lock()
	if version > s.persisted {
		s.persisted = version
	}
	s.persistMu.Unlock()
}

func (s *Store) withUser(ctx context.Context, userID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithUserID(ctx, userID)
}
