package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store using Firestore. Each user has a
// document under "ledgers" holding the append counter, with the records
// in a "transactions" subcollection ordered by a Position field.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore-backed ledger store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type firestoreRecord struct {
	Record
	Position int64 `firestore:"Position"`
}

func (s *FirestoreStore) ledgerDoc(userID string) *firestore.DocumentRef {
	return s.client.Collection("ledgers").Doc(userID)
}

// Append adds one record, allocating the next position inside a
// transaction so concurrent appends keep insertion order consistent.
func (s *FirestoreStore) Append(ctx context.Context, userID string, rec Record) error {
	ledgerRef := s.ledgerDoc(userID)
	txnRef := ledgerRef.Collection("transactions").Doc(uuid.New().String())

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var position int64
		snap, err := tx.Get(ledgerRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			if v, err := snap.DataAt("Count"); err == nil {
				if n, ok := v.(int64); ok {
					position = n
				}
			}
		}
		if err := tx.Set(txnRef, firestoreRecord{Record: rec, Position: position}); err != nil {
			return err
		}
		return tx.Set(ledgerRef, map[string]any{
			"Count":     position + 1,
			"UpdatedAt": firestore.ServerTimestamp,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	return nil
}

// List returns every record for the user ordered by append position.
func (s *FirestoreStore) List(ctx context.Context, userID string) ([]Record, error) {
	snap, err := s.ledgerDoc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if !snap.Exists() {
		return nil, ErrNotFound
	}

	iter := s.ledgerDoc(userID).Collection("transactions").
		OrderBy("Position", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var recs []Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate ledger records: %w", err)
		}
		var fr firestoreRecord
		if err := doc.DataTo(&fr); err != nil {
			return nil, fmt.Errorf("failed to decode ledger record: %w", err)
		}
		recs = append(recs, fr.Record)
	}
	return recs, nil
}

// Revision combines the append counter with the ledger's last update
// time so any write moves the marker.
func (s *FirestoreStore) Revision(ctx context.Context, userID string) (string, error) {
	snap, err := s.ledgerDoc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ledger revision: %w", err)
	}
	if !snap.Exists() {
		return "", ErrNotFound
	}
	var count int64
	if v, err := snap.DataAt("Count"); err == nil {
		if n, ok := v.(int64); ok {
			count = n
		}
	}
	return fmt.Sprintf("fs-%d-%d", count, snap.UpdateTime.UnixNano()), nil
}
