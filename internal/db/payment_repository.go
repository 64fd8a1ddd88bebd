package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/legendstarrx/scriptsea/internal/models"
)

const paymentsCollection = "payments"

type firestorePaymentRepository struct {
	client *firestore.Client
}

// NewFirestorePaymentRepository creates a PaymentRepository whose documents are keyed by gateway reference.
func NewFirestorePaymentRepository(client *firestore.Client) PaymentRepository {
	return &firestorePaymentRepository{client: client}
}

func (r *firestorePaymentRepository) ApplyOnce(ctx context.Context, rec *models.PaymentRecord, fn MutateFunc) (*models.Profile, error) {
	payRef := r.client.Collection(paymentsCollection).Doc(rec.Reference)
	userRef := r.client.Collection(usersCollection).Doc(rec.UserID)

	var out *models.Profile
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// All reads must precede writes inside a Firestore transaction.
		if _, err := tx.Get(payRef); err == nil {
			return fmt.Errorf("payment %s: %w", rec.Reference, ErrAlreadyExists)
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		snap, err := tx.Get(userRef)
		if err != nil {
			return err
		}
		p, err := decodeProfile(snap)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := tx.Set(userRef, p); err != nil {
			return err
		}
		out = p
		return tx.Create(payRef, rec)
	})
	if err != nil {
		return nil, classify(err, "apply payment %s", rec.Reference)
	}
	return out, nil
}

func (r *firestorePaymentRepository) List(ctx context.Context, limit int) ([]*models.PaymentRecord, error) {
	iter := r.client.Collection(paymentsCollection).OrderBy("date", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var records []*models.PaymentRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "list payments")
		}
		var rec models.PaymentRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode payment %s: %w", snap.Ref.ID, err)
		}
		rec.Reference = snap.Ref.ID
		records = append(records, &rec)
	}
	return records, nil
}
