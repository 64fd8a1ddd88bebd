package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/legendstarrx/scriptsea/internal/models"
)

const usersCollection = "users"

// firestoreProfileRepository implements ProfileRepository using Firestore.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a ProfileRepository backed by the users collection.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	return &firestoreProfileRepository{client: client}
}

func decodeProfile(snap *firestore.DocumentSnapshot) (*models.Profile, error) {
	var p models.Profile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", snap.Ref.ID, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

func (r *firestoreProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, errors.New("profile ID cannot be empty")
	}
	snap, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, classify(err, "get profile %s", id)
	}
	return decodeProfile(snap)
}

func (r *firestoreProfileRepository) first(ctx context.Context, q firestore.Query, what string) (*models.Profile, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("profile by %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, classify(err, "query profile by %s", what)
	}
	return decodeProfile(snap)
}

func (r *firestoreProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.first(ctx, r.client.Collection(usersCollection).Where("email", "==", email), "email")
}

func (r *firestoreProfileRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("profile by verification token: %w", ErrNotFound)
	}
	return r.first(ctx, r.client.Collection(usersCollection).Where("verificationToken", "==", token), "verification token")
}

// Create adds a new profile; the profile ID (Firebase UID) is the document ID.
func (r *firestoreProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		return errors.New("profile ID cannot be empty for Create operation")
	}
	if _, err := r.client.Collection(usersCollection).Doc(p.ID).Create(ctx, p); err != nil {
		return classify(err, "create profile %s", p.ID)
	}
	return nil
}

// Mutate is the only read-then-write path for profiles. Firestore retries the
// transaction on contention, so fn must only depend on the profile it is given.
func (r *firestoreProfileRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*models.Profile, error) {
	ref := r.client.Collection(usersCollection).Doc(id)
	var out *models.Profile
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
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
		out = p
		return tx.Set(ref, p)
	})
	if err != nil {
		return nil, classify(err, "mutate profile %s", id)
	}
	return out, nil
}

func (r *firestoreProfileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(usersCollection).Doc(id).Delete(ctx); err != nil {
		return classify(err, "delete profile %s", id)
	}
	return nil
}

func (r *firestoreProfileRepository) List(ctx context.Context, limit int, startAfter string) ([]*models.Profile, error) {
	q := r.client.Collection(usersCollection).OrderBy(firestore.DocumentID, firestore.Asc).Limit(limit)
	if startAfter != "" {
		q = q.StartAfter(startAfter)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var profiles []*models.Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "list profiles")
		}
		p, err := decodeProfile(snap)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Subscribe starts a Firestore snapshot listener on the profile document.
// The channel is closed when ctx is cancelled or the listener fails; a
// failure is delivered as a final snapshot with Err set.
func (r *firestoreProfileRepository) Subscribe(ctx context.Context, id string) (<-chan ProfileSnapshot, error) {
	if id == "" {
		return nil, errors.New("profile ID cannot be empty for Subscribe operation")
	}
	it := r.client.Collection(usersCollection).Doc(id).Snapshots(ctx)
	out := make(chan ProfileSnapshot)

	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			var s ProfileSnapshot
			switch {
			case err != nil:
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				s.Err = classify(err, "listen profile %s", id)
			case !snap.Exists():
			default:
				s.Profile, s.Err = decodeProfile(snap)
				s.Exists = s.Err == nil
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out, nil
}
