package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
)

// CartStore owns one session's cart lines and selection set.
//
// Without a credential every operation reads and writes the GuestBackend. With
// one, mutations go to the AuthBackend and the canonical cart is fetched again
// afterwards, unless the backend response already carries the whole cart.
//
// Mutations are funnelled through queue and hold it across the backend round
// trip. Refreshes do not take the queue; each is tagged with a sequence number
// when issued and its result is dropped if a newer line set was committed first.
// Stock merges keep their own watermark so they never invalidate a refresh.
type CartStore struct {
	key        string
	guest      GuestBackend
	auth       AuthBackend
	normalizer *LineNormalizer

	queue sync.Mutex

	mu         sync.RWMutex
	guestID    string
	credential string
	rejected   string
	expired    bool
	lines      []models.CartLine
	selected   map[string]struct{}
	hydrated   bool
	seq        uint64
	applied    uint64
	stockSeq   uint64

	lastSeen atomic.Int64
}

func NewCartStore(key, guestID string, guest GuestBackend, auth AuthBackend, normalizer *LineNormalizer) *CartStore {
	s := &CartStore{
		key:        key,
		guestID:    guestID,
		guest:      guest,
		auth:       auth,
		normalizer: normalizer,
		lines:      []models.CartLine{},
		selected:   map[string]struct{}{},
	}
	s.Touch(time.Now())

	return s
}

// Touch records that a request used the store at now.
func (s *CartStore) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *CartStore) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *CartStore) Key() string {
	return s.key
}

func (s *CartStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential != ""
}

func (s *CartStore) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expired
}

// Tag issues the next sequence number. Callers that fetch data outside the store
// take a tag before the fetch and hand it back when applying the result.
func (s *CartStore) Tag() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++

	return s.seq
}

// commit installs lines unless a line set newer than seq was committed already.
func (s *CartStore) commit(seq uint64, lines []models.CartLine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		return false
	}

	s.lines = lines
	s.applied = seq
	s.hydrated = true
	s.pruneSelection()

	return true
}

// Hydrate loads the cart from the active backend once. It holds the mutation
// queue, so no mutation can run against a store that has not been loaded yet.
func (s *CartStore) Hydrate(ctx context.Context) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	s.mu.RLock()
	done := s.hydrated
	s.mu.RUnlock()
	if done {
		return nil
	}

	return s.Refresh(ctx)
}

// Reload refreshes the cart while holding the mutation queue. It is used after
// the credential changed, when the loaded lines may belong to another backend.
func (s *CartStore) Reload(ctx context.Context) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	return s.Refresh(ctx)
}

func (s *CartStore) pruneSelection() {
	present := make(map[string]struct{}, len(s.lines))
	for _, line := range s.lines {
		present[line.ID] = struct{}{}
	}

	for id := range s.selected {
		if _, ok := present[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// expire drops the credential after the backend rejected it.
func (s *CartStore) expire(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.credential != credential {
		return
	}

	s.credential = ""
	s.rejected = credential
	s.expired = true
	s.lines = []models.CartLine{}
	s.selected = map[string]struct{}{}
	s.seq++
	s.applied = s.seq
}

// Authenticate attaches a credential seen on an incoming request. A credential
// the backend already rejected does not revive an expired session.
func (s *CartStore) Authenticate(credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if credential == "" || credential == s.credential || (s.expired && credential == s.rejected) {
		return false
	}

	s.credential = credential
	s.expired = false
	s.rejected = ""

	return true
}

func (s *CartStore) state() (credential string, expired bool, lines []models.CartLine) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential, s.expired, cloneLines(s.lines)
}

func cloneLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.Clone())
	}

	return out
}

type mutation func(ctx context.Context, credential string, current []models.CartLine) ([]models.CartLine, error)

func (s *CartStore) mutate(ctx context.Context, fn mutation) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	credential, expired, current := s.state()
	if expired {
		return sessionExpired()
	}

	next, err := fn(ctx, credential, current)
	if err != nil {
		if credential != "" && errors.HasCode(err, errors.ErrCodeSessionExpired) {
			s.expire(credential)
		}
		return err
	}

	// The backend already holds next, so it is committed even if ctx has been
	// cancelled since.
	s.commit(s.Tag(), next)

	return nil
}

func sessionExpired() *errors.AppError {
	return errors.SessionExpiredError("Session expired, please sign in again")
}

// Refresh reloads the cart from the active backend. The result is discarded when
// a mutation or newer refresh landed while it was in flight.
func (s *CartStore) Refresh(ctx context.Context) error {
	seq := s.Tag()

	credential, expired, _ := s.state()
	if expired {
		return sessionExpired()
	}

	var (
		lines []models.CartLine
		err   error
	)
	if credential != "" {
		lines, err = s.fetchRemote(ctx, credential)
		if errors.HasCode(err, errors.ErrCodeSessionExpired) {
			s.expire(credential)
		}
	} else {
		lines, err = s.loadGuest(ctx, s.currentGuestID())
	}
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.commit(seq, lines) {
		middleware.LoggerFromContext(ctx).Debug("Discarded stale cart refresh", slog.String("session", s.key), slog.Uint64("seq", seq))
	}

	return nil
}

func (s *CartStore) currentGuestID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.guestID
}

// Add puts quantity units of product in the cart. A line with the same product
// and size gains the quantity instead of a second line being created.
//
// Authenticated carts trust the backend echo when it is complete, otherwise refetch.
func (s *CartStore) Add(ctx context.Context, product models.RawLine, quantity int, size *string) error {
	if quantity < 1 {
		quantity = 1
	}

	candidate, err := s.normalizer.Normalize(lineFromProduct(product, quantity, size), nil)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(ctx context.Context, credential string, current []models.CartLine) ([]models.CartLine, error) {
		idx := indexOfIdentity(current, candidate.Identity())

		if credential == "" {
			if idx >= 0 {
				current[idx].Quantity += quantity
			} else {
				current = append(current, candidate)
			}
			return current, s.saveGuest(ctx, current)
		}

		var remote *models.RemoteCart
		if idx >= 0 {
			remote, err = s.auth.UpdateLine(ctx, credential, current[idx].ID, current[idx].Quantity+quantity)
		} else {
			remote, err = s.auth.AddLine(ctx, credential, &models.AddLineRequest{Product: productPayload(candidate), Quantity: quantity, Size: candidate.SelectedSize})
		}
		if err != nil {
			return nil, err
		}

		return s.settle(ctx, credential, remote)
	})
}

// Remove deletes a line. Removing a line that is not there succeeds.
// Authenticated carts are refetched afterwards.
func (s *CartStore) Remove(ctx context.Context, lineID string) error {
	return s.mutate(ctx, func(ctx context.Context, credential string, current []models.CartLine) ([]models.CartLine, error) {
		if credential == "" {
			next := withoutLines(current, func(l models.CartLine) bool { return l.ID == lineID })
			if len(next) == len(current) {
				return current, nil
			}
			return next, s.saveGuest(ctx, next)
		}

		remote, err := s.auth.RemoveLine(ctx, credential, lineID)
		if err != nil {
			return nil, err
		}

		return s.settle(ctx, credential, remote)
	})
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
// Stock and order limits are not enforced here.
func (s *CartStore) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, lineID)
	}

	return s.mutate(ctx, func(ctx context.Context, credential string, current []models.CartLine) ([]models.CartLine, error) {
		if credential == "" {
			idx := indexOfLine(current, lineID)
			if idx < 0 {
				return nil, errors.NotFoundError("Cart line not found").WithDetail(lineID)
			}
			current[idx].Quantity = quantity
			return current, s.saveGuest(ctx, current)
		}

		remote, err := s.auth.UpdateLine(ctx, credential, lineID, quantity)
		if err != nil {
			return nil, err
		}

		return s.settle(ctx, credential, remote)
	})
}

// Clear empties the cart, its backend copy and the selection.
func (s *CartStore) Clear(ctx context.Context) error {
	err := s.mutate(ctx, func(ctx context.Context, credential string, _ []models.CartLine) ([]models.CartLine, error) {
		if credential == "" {
			if err := s.guest.ClearCart(ctx, s.currentGuestID()); err != nil {
				return nil, errors.TransientNetworkError("Failed to clear guest cart").WithError(err)
			}
			return []models.CartLine{}, nil
		}

		if err := s.auth.ClearCart(ctx, credential); err != nil {
			return nil, err
		}

		return []models.CartLine{}, nil
	})
	if err != nil {
		return err
	}

	s.DeselectAll()

	return nil
}

// RemoveSelected removes every selected line.
func (s *CartStore) RemoveSelected(ctx context.Context) error {
	selected := s.SelectedLines()
	identities := make([]models.LineIdentity, 0, len(selected))
	for _, line := range selected {
		identities = append(identities, line.Identity())
	}

	return s.RemoveSpecific(ctx, identities)
}

// RemoveSpecific removes exactly the lines matching identities, leaving lines
// added since the identities were captured untouched.
func (s *CartStore) RemoveSpecific(ctx context.Context, identities []models.LineIdentity) error {
	if len(identities) == 0 {
		return nil
	}

	targets := make(map[models.LineIdentity]struct{}, len(identities))
	for _, id := range identities {
		targets[id] = struct{}{}
	}
	matches := func(l models.CartLine) bool {
		_, ok := targets[l.Identity()]
		return ok
	}

	return s.mutate(ctx, func(ctx context.Context, credential string, current []models.CartLine) ([]models.CartLine, error) {
		next := withoutLines(current, matches)
		if len(next) == len(current) {
			return current, nil
		}

		if credential == "" {
			return next, s.saveGuest(ctx, next)
		}

		for _, line := range current {
			if !matches(line) {
				continue
			}
			if _, err := s.auth.RemoveLine(ctx, credential, line.ID); err != nil {
				return nil, err
			}
		}

		return s.fetchRemote(ctx, credential)
	})
}

// Login attaches credential and merges the guest cart into the authenticated
// one, one line at a time, before clearing the guest copy and refetching.
//
// After each merged line the guest copy is rewritten without it, so a login
// retried after a partial failure only sends the lines still outstanding.
func (s *CartStore) Login(ctx context.Context, credential, guestID string) error {
	if credential == "" {
		return errors.UnauthorizedError("Missing credential")
	}

	s.queue.Lock()
	defer s.queue.Unlock()

	if guestID == "" {
		guestID = s.currentGuestID()
	}

	var guestLines []models.CartLine
	if guestID != "" {
		loaded, err := s.loadGuest(ctx, guestID)
		if err != nil {
			return err
		}
		guestLines = loaded
	}

	for i, line := range guestLines {
		req := &models.AddLineRequest{Product: productPayload(line), Quantity: line.Quantity, Size: line.SelectedSize}
		if _, err := s.auth.AddLine(ctx, credential, req); err != nil {
			return err
		}

		if rest := guestLines[i+1:]; len(rest) > 0 {
			if err := s.saveGuestAs(ctx, guestID, rest); err != nil {
				return err
			}
		}
	}

	if len(guestLines) > 0 {
		if err := s.guest.ClearCart(ctx, guestID); err != nil {
			return errors.TransientNetworkError("Failed to clear guest cart").WithError(err)
		}
	}

	lines, err := s.fetchRemote(ctx, credential)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.credential = credential
	s.guestID = guestID
	s.expired = false
	s.rejected = ""
	s.mu.Unlock()

	s.commit(s.Tag(), lines)

	middleware.LoggerFromContext(ctx).Info("Merged guest cart", slog.String("session", s.key), slog.Int("merged_lines", len(guestLines)))

	return nil
}

// Logout drops the credential and rehydrates from the guest backend.
func (s *CartStore) Logout(ctx context.Context) error {
	s.queue.Lock()
	defer s.queue.Unlock()

	s.mu.Lock()
	s.credential = ""
	s.rejected = ""
	s.expired = false
	guestID := s.guestID
	s.selected = map[string]struct{}{}
	s.mu.Unlock()

	lines := []models.CartLine{}
	if guestID != "" {
		loaded, err := s.loadGuest(ctx, guestID)
		if err != nil {
			return err
		}
		lines = loaded
	}

	s.commit(s.Tag(), lines)

	return nil
}

func (s *CartStore) Select(lineIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range lineIDs {
		if indexOfLine(s.lines, id) >= 0 {
			s.selected[id] = struct{}{}
		}
	}
}

func (s *CartStore) Deselect(lineIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range lineIDs {
		delete(s.selected, id)
	}
}

func (s *CartStore) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range s.lines {
		s.selected[line.ID] = struct{}{}
	}
}

func (s *CartStore) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = map[string]struct{}{}
}

// Lines returns a deep copy in display order.
func (s *CartStore) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneLines(s.lines)
}

// SelectedLines returns copies of the selected lines in display order.
func (s *CartStore) SelectedLines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CartLine, 0, len(s.selected))
	for _, line := range s.lines {
		if _, ok := s.selected[line.ID]; ok {
			out = append(out, line.Clone())
		}
	}

	return out
}

func (s *CartStore) Totals() models.CartTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.ComputeTotals(s.lines)
}

func (s *CartStore) Snapshot() models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart := models.Cart{
		SessionKey:    s.key,
		Authenticated: s.credential != "",
		Lines:         cloneLines(s.lines),
		Selected:      make([]string, 0, len(s.selected)),
		Totals:        models.ComputeTotals(s.lines),
	}
	for _, line := range s.lines {
		if _, ok := s.selected[line.ID]; ok {
			cart.Selected = append(cart.Selected, line.ID)
		}
	}

	return cart
}

// ProductIDs lists each product in the cart once.
func (s *CartStore) ProductIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.lines))
	ids := make([]string, 0, len(s.lines))
	for _, line := range s.lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	return ids
}

// ApplyStock merges polled availability into matching lines without touching
// any other field. It reports false when the tag is older than the last line
// set commit or the last stock merge. It never moves the line set watermark.
func (s *CartStore) ApplyStock(tag uint64, snapshots map[string]models.StockSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tag < s.applied || tag < s.stockSeq {
		return false
	}

	for i := range s.lines {
		if snapshot, ok := snapshots[s.lines[i].ProductID]; ok {
			applyStock(&s.lines[i], snapshot)
		}
	}
	s.stockSeq = tag

	return true
}

// settle turns a backend response into the canonical line list: a complete echo
// is trusted, anything else triggers a refetch.
func (s *CartStore) settle(ctx context.Context, credential string, remote *models.RemoteCart) ([]models.CartLine, error) {
	if remote != nil && remote.Complete {
		return s.normalizeAll(ctx, remote.Lines), nil
	}

	return s.fetchRemote(ctx, credential)
}

func (s *CartStore) fetchRemote(ctx context.Context, credential string) ([]models.CartLine, error) {
	remote, err := s.auth.FetchCart(ctx, credential)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return []models.CartLine{}, nil
	}

	return s.normalizeAll(ctx, remote.Lines), nil
}

func (s *CartStore) loadGuest(ctx context.Context, guestID string) ([]models.CartLine, error) {
	raws, err := s.guest.LoadCart(ctx, guestID)
	if err != nil {
		return nil, errors.TransientNetworkError("Failed to load guest cart").WithError(err)
	}

	return s.normalizeAll(ctx, raws), nil
}

func (s *CartStore) saveGuest(ctx context.Context, lines []models.CartLine) error {
	return s.saveGuestAs(ctx, s.currentGuestID(), lines)
}

func (s *CartStore) saveGuestAs(ctx context.Context, guestID string, lines []models.CartLine) error {
	raws := make([]models.RawLine, 0, len(lines))
	for _, line := range lines {
		raws = append(raws, line.AsRaw())
	}

	if err := s.guest.SaveCart(ctx, guestID, raws); err != nil {
		return errors.TransientNetworkError("Failed to save guest cart").WithError(err)
	}

	return nil
}

// normalizeAll skips payloads that cannot be turned into a line rather than
// failing the whole cart.
func (s *CartStore) normalizeAll(ctx context.Context, raws []models.RawLine) []models.CartLine {
	lines := make([]models.CartLine, 0, len(raws))
	for _, raw := range raws {
		line, err := s.normalizer.Normalize(raw, nil)
		if err != nil {
			middleware.LoggerFromContext(ctx).Warn("Skipping unreadable cart line", slog.String("session", s.key), slog.String("error", err.Error()))
			continue
		}
		lines = append(lines, line)
	}

	return lines
}

func lineFromProduct(product models.RawLine, quantity int, size *string) models.RawLine {
	raw := models.RawLine{"product": map[string]any(product), "quantity": quantity}
	if size != nil && *size != "" {
		raw["selected_size"] = *size
	}

	return raw
}

// productPayload is the line as a product description, without line-level fields.
func productPayload(line models.CartLine) models.RawLine {
	raw := line.AsRaw()
	delete(raw, "id")
	delete(raw, "quantity")
	delete(raw, "selected_size")

	return raw
}

func indexOfIdentity(lines []models.CartLine, id models.LineIdentity) int {
	for i, line := range lines {
		if line.Identity() == id {
			return i
		}
	}

	return -1
}

func indexOfLine(lines []models.CartLine, lineID string) int {
	for i, line := range lines {
		if line.ID == lineID {
			return i
		}
	}

	return -1
}

func withoutLines(lines []models.CartLine, drop func(models.CartLine) bool) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		if !drop(line) {
			out = append(out, line)
		}
	}

	return out
}
