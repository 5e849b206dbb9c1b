// README: In-memory implementation of every repository, with snapshot/rollback transactions.
// Used by the test suites and by VANBORA_STORE=memory for local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vanbora/internal/modules/inventory"
	"vanbora/internal/modules/payment"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/types"
)

type state struct {
	users        map[types.ID]user.User
	trips        map[types.ID]trip.Trip
	reservations map[types.ID]reservation.Reservation
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[types.ID]user.User, len(s.users)),
		trips:        make(map[types.ID]trip.Trip, len(s.trips)),
		reservations: make(map[types.ID]reservation.Reservation, len(s.reservations)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

// DB serialises every transaction behind one mutex. A failed transaction
// restores the snapshot taken when it began.
type DB struct {
	mu    sync.Mutex
	state *state
}

type txKey struct{}

func New() *DB {
	return &DB{state: &state{
		users:        make(map[types.ID]user.User),
		trips:        make(map[types.ID]trip.Trip),
		reservations: make(map[types.ID]reservation.Reservation),
	}}
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == db {
		return fn(ctx)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	snapshot := db.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.state = snapshot
		return err
	}
	return nil
}

func (db *DB) view(ctx context.Context, fn func(s *state) error) error {
	if ctx.Value(txKey{}) == db {
		return fn(db.state)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.state)
}

func (db *DB) Users() *Users               { return &Users{db: db} }
func (db *DB) Trips() *Trips               { return &Trips{db: db} }
func (db *DB) Seats() *Seats               { return &Seats{db: db} }
func (db *DB) Reservations() *Reservations { return &Reservations{db: db} }

type Users struct{ db *DB }

func (u *Users) Create(ctx context.Context, in *user.User) error {
	return u.db.view(ctx, func(s *state) error {
		if _, ok := s.users[in.ID]; ok {
			return user.ErrAlreadyRegistered
		}
		for _, other := range s.users {
			if strings.EqualFold(other.Email, in.Email) || other.Username == in.Username {
				return user.ErrAlreadyRegistered
			}
		}
		s.users[in.ID] = *in
		return nil
	})
}

func (u *Users) Get(ctx context.Context, id types.ID) (*user.User, error) {
	var out user.User
	err := u.db.view(ctx, func(s *state) error {
		v, ok := s.users[id]
		if !ok {
			return user.ErrNotFound
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Users) CreditBalance(ctx context.Context, id types.ID, amount types.Money) error {
	if amount.Amount < 0 {
		return user.ErrNegativeCredit
	}
	return u.db.view(ctx, func(s *state) error {
		v, ok := s.users[id]
		if !ok {
			return user.ErrNotFound
		}
		v.Balance = v.Balance.Add(amount)
		s.users[id] = v
		return nil
	})
}

type Trips struct{ db *DB }

func (t *Trips) Create(ctx context.Context, in *trip.Trip) error {
	return t.db.view(ctx, func(s *state) error {
		if _, ok := s.users[in.DriverID]; !ok {
			return user.ErrNotFound
		}
		s.trips[in.ID] = *in
		return nil
	})
}

func (t *Trips) Get(ctx context.Context, id types.ID) (*trip.Trip, error) {
	var out trip.Trip
	err := t.db.view(ctx, func(s *state) error {
		v, ok := s.trips[id]
		if !ok {
			return trip.ErrNotFound
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Trips) List(ctx context.Context, f trip.Filter) ([]*trip.Trip, error) {
	var out []*trip.Trip
	err := t.db.view(ctx, func(s *state) error {
		for _, v := range s.trips {
			if f.Origin != "" && !containsFold(v.Origin, f.Origin) {
				continue
			}
			if f.Destination != "" && !containsFold(v.Destination, f.Destination) {
				continue
			}
			if f.DriverID != "" && v.DriverID != f.DriverID {
				continue
			}
			if !f.DepartsAfter.IsZero() && !v.DepartureAt.After(f.DepartsAfter) {
				continue
			}
			v := v
			out = append(out, &v)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureAt.Equal(out[j].DepartureAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureAt.Before(out[j].DepartureAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

func (t *Trips) UpdateDetails(ctx context.Context, in *trip.Trip) error {
	return t.db.view(ctx, func(s *state) error {
		v, ok := s.trips[in.ID]
		if !ok {
			return trip.ErrNotFound
		}
		v.Origin, v.Destination, v.DepartureAt = in.Origin, in.Destination, in.DepartureAt
		v.Price, v.Cancelable, v.UpdatedAt = in.Price, in.Cancelable, in.UpdatedAt
		s.trips[in.ID] = v
		return nil
	})
}

func (t *Trips) Delete(ctx context.Context, id types.ID) error {
	return t.db.view(ctx, func(s *state) error {
		if _, ok := s.trips[id]; !ok {
			return trip.ErrNotFound
		}
		delete(s.trips, id)
		for rid, r := range s.reservations {
			if r.TripID == id {
				delete(s.reservations, rid)
			}
		}
		return nil
	})
}

type Seats struct{ db *DB }

func (st *Seats) DecrementSeat(ctx context.Context, tripID types.ID) (bool, error) {
	return st.update(ctx, tripID, func(t *trip.Trip) bool {
		if t.AvailableSeats <= 0 {
			return false
		}
		t.AvailableSeats--
		return true
	})
}

func (st *Seats) IncrementSeat(ctx context.Context, tripID types.ID) (bool, error) {
	return st.update(ctx, tripID, func(t *trip.Trip) bool {
		if t.AvailableSeats >= t.Capacity {
			return false
		}
		t.AvailableSeats++
		return true
	})
}

func (st *Seats) ResizeCapacity(ctx context.Context, tripID types.ID, capacity int) (bool, error) {
	return st.update(ctx, tripID, func(t *trip.Trip) bool {
		if t.Held() > capacity {
			return false
		}
		t.AvailableSeats += capacity - t.Capacity
		t.Capacity = capacity
		return true
	})
}

func (st *Seats) Counts(ctx context.Context, tripID types.ID) (inventory.Counts, error) {
	var c inventory.Counts
	err := st.db.view(ctx, func(s *state) error {
		v, ok := s.trips[tripID]
		if !ok {
			return inventory.ErrTripNotFound
		}
		c = inventory.Counts{Available: v.AvailableSeats, Capacity: v.Capacity}
		return nil
	})
	return c, err
}

func (st *Seats) update(ctx context.Context, tripID types.ID, fn func(t *trip.Trip) bool) (bool, error) {
	var ok bool
	err := st.db.view(ctx, func(s *state) error {
		v, found := s.trips[tripID]
		if !found {
			return nil
		}
		if ok = fn(&v); ok {
			v.UpdatedAt = time.Now().UTC()
			s.trips[tripID] = v
		}
		return nil
	})
	return ok, err
}

type Reservations struct{ db *DB }

func (rs *Reservations) Insert(ctx context.Context, in *reservation.Reservation) error {
	return rs.db.view(ctx, func(s *state) error {
		if _, ok := s.users[in.UserID]; !ok {
			return reservation.ErrUnknownUser
		}
		for _, r := range s.reservations {
			if r.Status == reservation.StatusConfirmed && r.UserID == in.UserID && r.TripID == in.TripID {
				return reservation.ErrDuplicateReservation
			}
		}
		s.reservations[in.ID] = *in
		return nil
	})
}

func (rs *Reservations) Get(ctx context.Context, id types.ID) (*reservation.Reservation, error) {
	return rs.find(ctx, func(r *reservation.Reservation) bool { return r.ID == id })
}

// GetForUpdate needs no extra locking: every transaction already holds the store mutex.
func (rs *Reservations) GetForUpdate(ctx context.Context, id types.ID) (*reservation.Reservation, error) {
	return rs.Get(ctx, id)
}

func (rs *Reservations) GetByPaymentID(ctx context.Context, paymentID string) (*reservation.Reservation, error) {
	if paymentID == "" {
		return nil, reservation.ErrNotFound
	}
	return rs.find(ctx, func(r *reservation.Reservation) bool { return r.PaymentID == paymentID })
}

func (rs *Reservations) HasConfirmed(ctx context.Context, userID, tripID types.ID) (bool, error) {
	_, err := rs.find(ctx, func(r *reservation.Reservation) bool {
		return r.UserID == userID && r.TripID == tripID && r.Status == reservation.StatusConfirmed
	})
	if err == reservation.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (rs *Reservations) ListByUser(ctx context.Context, userID types.ID) ([]*reservation.Reservation, error) {
	out, err := rs.filter(ctx, func(r *reservation.Reservation) bool { return r.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (rs *Reservations) ListByTrip(ctx context.Context, tripID types.ID, status reservation.Status) ([]*reservation.Reservation, error) {
	return rs.filter(ctx, func(r *reservation.Reservation) bool { return r.TripID == tripID && r.Status == status })
}

func (rs *Reservations) ListUnsettled(ctx context.Context, createdBefore time.Time, after reservation.Cursor, limit int) ([]*reservation.Reservation, error) {
	out, err := rs.filter(ctx, func(r *reservation.Reservation) bool {
		unsettled := (r.PaymentStatus == payment.StatusPending && r.PaymentID != "") || r.PayoutOutcome == payment.PayoutPending
		return unsettled && r.CreatedAt.Before(createdBefore) && after.After(r)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (rs *Reservations) UpdateStatus(ctx context.Context, id types.ID, from, to reservation.Status) (bool, error) {
	return rs.update(ctx, id, func(r *reservation.Reservation) bool {
		if r.Status != from {
			return false
		}
		r.Status = to
		return true
	})
}

func (rs *Reservations) MoveTrip(ctx context.Context, id, from, to types.ID) (bool, error) {
	return rs.update(ctx, id, func(r *reservation.Reservation) bool {
		if r.TripID != from || r.Status != reservation.StatusConfirmed {
			return false
		}
		r.TripID = to
		return true
	})
}

func (rs *Reservations) SetPaymentID(ctx context.Context, id types.ID, paymentID string) (bool, error) {
	return rs.update(ctx, id, func(r *reservation.Reservation) bool {
		if r.PaymentID != "" {
			return false
		}
		r.PaymentID = paymentID
		return true
	})
}

func (rs *Reservations) UpdatePaymentStatus(ctx context.Context, id types.ID, from, to payment.Status) (bool, error) {
	return rs.update(ctx, id, func(r *reservation.Reservation) bool {
		if r.PaymentStatus != from {
			return false
		}
		r.PaymentStatus = to
		return true
	})
}

func (rs *Reservations) UpdatePayout(ctx context.Context, id types.ID, from payment.PayoutOutcome, to reservation.PayoutUpdate) (bool, error) {
	return rs.update(ctx, id, func(r *reservation.Reservation) bool {
		if r.PayoutOutcome != from {
			return false
		}
		r.PayoutOutcome, r.PayoutID, r.PayoutStatus = to.Outcome, to.PayoutID, to.PayoutStatus
		return true
	})
}

func (rs *Reservations) find(ctx context.Context, match func(r *reservation.Reservation) bool) (*reservation.Reservation, error) {
	var out *reservation.Reservation
	err := rs.db.view(ctx, func(s *state) error {
		for _, r := range s.reservations {
			r := r
			if match(&r) {
				out = &r
				return nil
			}
		}
		return reservation.ErrNotFound
	})
	return out, err
}

func (rs *Reservations) filter(ctx context.Context, match func(r *reservation.Reservation) bool) ([]*reservation.Reservation, error) {
	var out []*reservation.Reservation
	err := rs.db.view(ctx, func(s *state) error {
		for _, r := range s.reservations {
			r := r
			if match(&r) {
				out = append(out, &r)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (rs *Reservations) update(ctx context.Context, id types.ID, fn func(r *reservation.Reservation) bool) (bool, error) {
	var ok bool
	err := rs.db.view(ctx, func(s *state) error {
		r, found := s.reservations[id]
		if !found {
			return nil
		}
		if ok = fn(&r); ok {
			r.UpdatedAt = time.Now().UTC()
			s.reservations[id] = r
		}
		return nil
	})
	return ok, err
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
