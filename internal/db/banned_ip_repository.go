package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/legendstarrx/scriptsea/internal/models"
)

const bannedIPsCollection = "banned_ips"

type firestoreBannedIPRepository struct {
	client *firestore.Client
}

// NewFirestoreBannedIPRepository creates a BannedIPRepository keyed by IP address.
func NewFirestoreBannedIPRepository(client *firestore.Client) BannedIPRepository {
	return &firestoreBannedIPRepository{client: client}
}

func (r *firestoreBannedIPRepository) Get(ctx context.Context, ip string) (*models.BannedIP, error) {
	snap, err := r.client.Collection(bannedIPsCollection).Doc(ip).Get(ctx)
	if err != nil {
		return nil, classify(err, "get banned ip %s", ip)
	}
	var entry models.BannedIP
	if err := snap.DataTo(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode banned ip %s: %w", ip, err)
	}
	entry.IP = snap.Ref.ID
	return &entry, nil
}

// Put creates or replaces the entry, clearing any previous unban marker.
func (r *firestoreBannedIPRepository) Put(ctx context.Context, entry *models.BannedIP) error {
	if _, err := r.client.Collection(bannedIPsCollection).Doc(entry.IP).Set(ctx, entry); err != nil {
		return classify(err, "ban ip %s", entry.IP)
	}
	return nil
}

func (r *firestoreBannedIPRepository) MarkUnbanned(ctx context.Context, ip string, at time.Time) error {
	_, err := r.client.Collection(bannedIPsCollection).Doc(ip).Update(ctx, []firestore.Update{
		{Path: "unbannedAt", Value: at},
	})
	if err != nil {
		return classify(err, "unban ip %s", ip)
	}
	return nil
}

func (r *firestoreBannedIPRepository) Delete(ctx context.Context, ip string) error {
	if _, err := r.client.Collection(bannedIPsCollection).Doc(ip).Delete(ctx); err != nil {
		return classify(err, "delete banned ip %s", ip)
	}
	return nil
}

func (r *firestoreBannedIPRepository) List(ctx context.Context) ([]*models.BannedIP, error) {
	iter := r.client.Collection(bannedIPsCollection).OrderBy("bannedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var entries []*models.BannedIP
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "list banned ips")
		}
		var entry models.BannedIP
		if err := snap.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode banned ip %s: %w", snap.Ref.ID, err)
		}
		entry.IP = snap.Ref.ID
		entries = append(entries, &entry)
	}
	return entries, nil
}
