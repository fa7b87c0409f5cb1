package service

import (
	"context"
	"sync"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/google/uuid"
)

func GuestKey(guestID string) string {
	return "guest:" + guestID
}

func UserKey(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// SessionRegistry hands out one CartStore per session key.
type SessionRegistry struct {
	guest      GuestBackend
	auth       AuthBackend
	normalizer *LineNormalizer

	mu     sync.Mutex
	stores map[string]*CartStore
}

func NewSessionRegistry(guest GuestBackend, auth AuthBackend, normalizer *LineNormalizer) *SessionRegistry {
	return &SessionRegistry{
		guest:      guest,
		auth:       auth,
		normalizer: normalizer,
		stores:     make(map[string]*CartStore),
	}
}

// Guest returns the store for an anonymous visitor, hydrating it on first use.
// Callers racing the first request wait until hydration has finished.
func (r *SessionRegistry) Guest(ctx context.Context, guestID string) (*CartStore, error) {
	if guestID == "" {
		return nil, errors.BadRequestError("Missing guest session id")
	}

	store, _ := r.getOrCreate(GuestKey(guestID), guestID)
	if err := store.Hydrate(ctx); err != nil {
		r.forget(store)
		return nil, err
	}

	return store, nil
}

// User returns the store for a signed-in buyer. guestID, when known, is kept so
// a later logout can fall back to that visitor's guest cart.
func (r *SessionRegistry) User(ctx context.Context, userID uuid.UUID, credential, guestID string) (*CartStore, error) {
	store, created := r.getOrCreate(UserKey(userID), guestID)

	load := store.Hydrate
	if store.Authenticate(credential) && !created {
		load = store.Reload
	}

	if err := load(ctx); err != nil {
		if created {
			r.forget(store)
		}
		return nil, err
	}

	if store.Expired() {
		return nil, sessionExpired()
	}

	return store, nil
}

func (r *SessionRegistry) Lookup(key string) (*CartStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[key]

	return store, ok
}

// Promote moves a visitor to their authenticated cart, merging the guest lines.
func (r *SessionRegistry) Promote(ctx context.Context, guestID string, userID uuid.UUID, credential string) (*CartStore, error) {
	store, created := r.getOrCreate(UserKey(userID), guestID)

	if err := store.Login(ctx, credential, guestID); err != nil {
		if created {
			r.forget(store)
		}
		return nil, err
	}

	if guestID != "" {
		r.mu.Lock()
		delete(r.stores, GuestKey(guestID))
		r.mu.Unlock()
	}

	return store, nil
}

// Demote signs a buyer out. Anyone still holding the user's store sees it
// unauthenticated; the visitor continues on their guest cart.
func (r *SessionRegistry) Demote(ctx context.Context, userID uuid.UUID, guestID string) (*CartStore, error) {
	r.mu.Lock()
	store, ok := r.stores[UserKey(userID)]
	delete(r.stores, UserKey(userID))
	r.mu.Unlock()

	if ok {
		if guestID == "" {
			guestID = store.currentGuestID()
		}
		if err := store.Logout(ctx); err != nil {
			return nil, err
		}
	}

	return r.Guest(ctx, guestID)
}

// Stores returns every live store.
func (r *SessionRegistry) Stores() []*CartStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*CartStore, 0, len(r.stores))
	for _, store := range r.stores {
		out = append(out, store)
	}

	return out
}

// ProductIDs is the union of products across all live carts.
func (r *SessionRegistry) ProductIDs() []string {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, store := range r.Stores() {
		for _, id := range store.ProductIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	return ids
}

// Tags takes a fresh sequence tag from every live store.
func (r *SessionRegistry) Tags() map[*CartStore]uint64 {
	stores := r.Stores()
	tags := make(map[*CartStore]uint64, len(stores))
	for _, store := range stores {
		tags[store] = store.Tag()
	}

	return tags
}

// ApplyStock merges one polled snapshot into every live store. tags carries the
// sequence number each store issued before the fetch started.
func (r *SessionRegistry) ApplyStock(tags map[*CartStore]uint64, snapshots map[string]models.StockSnapshot) int {
	applied := 0
	for store, tag := range tags {
		if store.ApplyStock(tag, snapshots) {
			applied++
		}
	}

	return applied
}

// Sweep drops stores no request has used since cutoff. Their lines live in the
// backends, so the next request for the session rebuilds the store from there.
func (r *SessionRegistry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, store := range r.stores {
		if store.LastSeen().Before(cutoff) {
			delete(r.stores, key)
			evicted++
		}
	}

	return evicted
}

func (r *SessionRegistry) getOrCreate(key, guestID string) (*CartStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[key]; ok {
		store.Touch(time.Now())
		return store, false
	}

	store := NewCartStore(key, guestID, r.guest, r.auth, r.normalizer)
	r.stores[key] = store

	return store, true
}

func (r *SessionRegistry) forget(store *CartStore) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stores[store.key] == store {
		delete(r.stores, store.key)
	}
}
