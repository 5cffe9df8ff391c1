package folder

import (
	"context"
	"strings"
	"time"

	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// nameHashSeed is the fixed prime seeding the rolling name hash. Changing
// it orphans every live reservation row, so it never changes.
const nameHashSeed int64 = 1125899906842597

// NameHash computes the 64-bit rolling hash of a folder name used as the
// reservation key: h = 31*h + r over the lower-cased name. Case folding
// makes the uniqueness check case-insensitive.
func NameHash(name string) int64 {
	h := nameHashSeed
	for _, r := range strings.ToLower(name) {
		h = 31*h + int64(r)
	}
	return h
}

// DefaultReservationTTL bounds how long a crash-abandoned reservation row
// survives before the sweep may purge it.
const DefaultReservationTTL = time.Hour

// Reservations serializes sibling-name uniqueness across concurrent
// transactions. Storage engines that take no gap locks on name-equality
// range scans can let two transactions both believe a name is free; the
// reservation row converts that race into a primary-key conflict, which is
// always serialized correctly.
//
// Reservations are not a general-purpose lock: there is no read-lock
// equivalent, only a uniqueness-conflict detector.
type Reservations struct {
	backend Backend
	ttl     time.Duration
	metrics *ReservationMetrics
}

// NewReservations creates the reservation service. A zero ttl selects
// DefaultReservationTTL. metrics may be nil.
func NewReservations(backend Backend, ttl time.Duration, metrics *ReservationMetrics) *Reservations {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &Reservations{backend: backend, ttl: ttl, metrics: metrics}
}

// Claim attempts to reserve a sibling name below a parent within the
// ambient transaction. A concurrent claim of the same (tenant, parent,
// name) surfaces as a DuplicateName error.
//
// Parents in the system id range are exempt: uniqueness is not enforced
// for system-level siblings, so the claim trivially succeeds and nothing
// is inserted.
func (r *Reservations) Claim(ctx context.Context, tx Tx, tenant, parent int64, name string) error {
	if IsSystemID(parent) {
		return nil
	}

	err := tx.InsertReservation(ctx, Reservation{
		Tenant:    tenant,
		Parent:    parent,
		NameHash:  NameHash(name),
		ExpiresAt: time.Now().Add(r.ttl),
	})
	r.metrics.ObserveClaim(err == nil)
	return err
}

// ReleaseInTx removes a claim inside the still-open transaction. Used when
// a later validation step rejects the mutation and the claim must not
// survive the (still to be committed or rolled back) transaction.
func (r *Reservations) ReleaseInTx(ctx context.Context, tx Tx, tenant, parent int64, name string) error {
	if IsSystemID(parent) {
		return nil
	}
	return tx.DeleteReservation(ctx, tenant, parent, NameHash(name))
}

// Release removes a claim after the owning transaction commits. Releasing
// before commit would open a window where a second transaction re-claims
// the name while the first transaction's structural row is not yet
// visible; the delete is therefore registered as a post-commit action.
// With a nil tx the release happens immediately, best-effort.
func (r *Reservations) Release(ctx context.Context, tx Tx, tenant, parent int64, name string) {
	if IsSystemID(parent) {
		return
	}
	hash := NameHash(name)

	if tx == nil {
		_ = r.backend.DeleteReservation(ctx, tenant, parent, hash)
		return
	}
	tx.Defer(func() {
		_ = r.backend.DeleteReservation(context.Background(), tenant, parent, hash)
	})
}

// Sweep purges reservation rows that expired longer than maxAge ago.
// Pure hygiene against crash-abandoned rows; correctness never depends on
// a reservation outliving its transaction.
func (r *Reservations) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge < 0 {
		maxAge = 0
	}
	deleted, err := r.backend.DeleteExpiredReservations(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, folderrors.NewTransient("reservation sweep", err)
	}
	r.metrics.ObserveSweep(deleted)
	return deleted, nil
}
