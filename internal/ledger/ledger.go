// Package ledger holds the per-user transaction ledger and its storage
// backends. A ledger is an append-ordered sequence of raw transaction
// records; order is significant and must survive every backend.
package ledger

import (
	"context"
	"errors"
)

// Columns is the canonical column set of a ledger, in CSV order.
var Columns = []string{
	"Date", "Time", "Merchant", "Amount", "Category",
	"Mood", "Location", "Calendar_Event", "Group_ID", "Balance_After",
}

// Record is one raw ledger row. Numeric-looking fields are kept as
// strings on purpose: coercion (and dropping rows that fail it) is the
// analytics preprocessor's job, so a store round-trips whatever it was
// given, including junk values.
type Record struct {
	Date          string `json:"date" firestore:"Date"`
	Time          string `json:"time" firestore:"Time"`
	Merchant      string `json:"merchant" firestore:"Merchant"`
	Amount        string `json:"amount" firestore:"Amount"`
	Category      string `json:"category" firestore:"Category"`
	Mood          string `json:"mood" firestore:"Mood"`
	Location      string `json:"location" firestore:"Location"`
	CalendarEvent string `json:"calendar_event" firestore:"Calendar_Event"`
	GroupID       string `json:"group_id" firestore:"Group_ID"`
	BalanceAfter  string `json:"balance_after" firestore:"Balance_After"`
}

// Fields returns the record's values in canonical column order.
func (r Record) Fields() []string {
	return []string{
		r.Date, r.Time, r.Merchant, r.Amount, r.Category,
		r.Mood, r.Location, r.CalendarEvent, r.GroupID, r.BalanceAfter,
	}
}

// ErrNotFound is returned when a user has no ledger.
var ErrNotFound = errors.New("ledger: not found")

// Store is the collaborator contract for ledger persistence.
//
// Revision is a freshness marker: it changes whenever the user's ledger
// changes, and two equal revisions mean the ledger content is unchanged.
// The analyzer cache keys fitted pipelines by it.
type Store interface {
	// Append adds one record to the end of the user's ledger, creating
	// the ledger if it does not exist yet.
	Append(ctx context.Context, userID string, rec Record) error

	// List returns every record for the user in insertion order.
	// Returns ErrNotFound if the user has no ledger.
	List(ctx context.Context, userID string) ([]Record, error)

	// Revision returns the user's ledger freshness marker.
	// Returns ErrNotFound if the user has no ledger.
	Revision(ctx context.Context, userID string) (string, error)
}
