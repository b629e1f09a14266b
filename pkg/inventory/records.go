package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryInput is a validated ledger row waiting to be recorded.
type EntryInput struct {
	bucket      Bucket
	quantity    Quantity
	kind        MovementKind
	reference   Reference
	note        string
	actor       ActorID
	effectiveAt time.Time
	createdAt   time.Time
}

// NewEntryInput validates the pieces of a ledger row.
func NewEntryInput(bucket Bucket, quantity Quantity, kind MovementKind, reference Reference, note string, actor ActorID, effectiveAt time.Time, createdAt time.Time) (EntryInput, error) {
	if bucket.IsZero() {
		return EntryInput{}, ErrInvalidBucket
	}
	if quantity.IsZero() {
		return EntryInput{}, fmt.Errorf("%w: must not be zero", ErrInvalidQuantity)
	}
	if !kind.Valid() {
		return EntryInput{}, fmt.Errorf("%w: %q", ErrInvalidMovementKind, kind)
	}
	if actor.value == "" {
		return EntryInput{}, fmt.Errorf("%w: empty value", ErrInvalidActorID)
	}
	if createdAt.IsZero() {
		return EntryInput{}, fmt.Errorf("%w: created time is required", ErrInvalidMovementRequest)
	}
	if effectiveAt.IsZero() {
		effectiveAt = createdAt
	}
	return EntryInput{
		bucket:      bucket,
		quantity:    quantity,
		kind:        kind,
		reference:   reference,
		note:        strings.TrimSpace(note),
		actor:       actor,
		effectiveAt: effectiveAt.UTC(),
		createdAt:   createdAt.UTC(),
	}, nil
}

func (input EntryInput) Bucket() Bucket         { return input.bucket }
func (input EntryInput) Quantity() Quantity     { return input.quantity }
func (input EntryInput) Kind() MovementKind     { return input.kind }
func (input EntryInput) Reference() Reference   { return input.reference }
func (input EntryInput) Note() string           { return input.note }
func (input EntryInput) Actor() ActorID         { return input.actor }
func (input EntryInput) EffectiveAt() time.Time { return input.effectiveAt }
func (input EntryInput) CreatedAt() time.Time   { return input.createdAt }

// LedgerEntry is a single immutable line in the ledger.
type LedgerEntry struct {
	EntryID     EntryID
	Bucket      Bucket
	Quantity    decimal.Decimal
	Kind        MovementKind
	Reference   Reference
	Note        string
	Actor       ActorID
	EffectiveAt time.Time
	CreatedAt   time.Time
}

// Snapshot is the current balance of one bucket.
type Snapshot struct {
	Bucket    Bucket
	OnHand    decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
	UpdatedAt time.Time
}

// NewSnapshot derives Available from the two stored counters.
func NewSnapshot(bucket Bucket, onHand decimal.Decimal, reserved decimal.Decimal, updatedAt time.Time) (Snapshot, error) {
	if reserved.IsNegative() {
		return Snapshot{}, fmt.Errorf("%w: reserved %s is negative", ErrInvalidBalance, reserved)
	}
	return Snapshot{
		Bucket:    bucket,
		OnHand:    onHand,
		Reserved:  reserved,
		Available: onHand.Sub(reserved),
		UpdatedAt: updatedAt,
	}, nil
}

// ZeroSnapshot is the balance of a bucket that has never moved.
func ZeroSnapshot(bucket Bucket) Snapshot {
	return Snapshot{Bucket: bucket, OnHand: decimal.Zero, Reserved: decimal.Zero, Available: decimal.Zero}
}

// MovementResult pairs the ledger row with the snapshot it produced.
type MovementResult struct {
	Entry    LedgerEntry
	Snapshot Snapshot
}

// BucketTotal is the ledger sum of one bucket.
type BucketTotal struct {
	Bucket Bucket
	Total  decimal.Decimal
}

// Discrepancy reports a bucket whose snapshot disagrees with its ledger.
type Discrepancy struct {
	Bucket      Bucket
	LedgerTotal decimal.Decimal
	OnHand      decimal.Decimal
}

// Guard selects whether a snapshot increment is conditional.
type Guard int

const (
	// Unguarded increments always apply and create the row when missing.
	Unguarded Guard = iota
	// GuardNonNegative only applies a decreasing increment when the guarded
	// figure stays non-negative: on-hand for IncrementOnHand, available for
	// IncrementReserved.
	GuardNonNegative
)
