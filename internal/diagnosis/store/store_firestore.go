package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"akashic/internal/diagnosis"
	"akashic/pkg/platform/sentinel"
)

const diagnosesCollection = "diagnoses"

// FirestoreStore persists diagnosis records in a Firestore collection.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestore connects to Firestore. Connectivity problems surface here, at
// construction, not on the first request.
func NewFirestore(ctx context.Context, projectID, database string) (*FirestoreStore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Put(ctx context.Context, record diagnosis.Record) error {
	_, err := s.client.Collection(diagnosesCollection).Doc(record.Token).Create(ctx, map[string]interface{}{
		"name":        record.Name,
		"birth_date":  record.BirthDate,
		"result":      record.Result,
		"tier":        string(record.Tier),
		"categories":  record.Categories,
		"free_text":   record.FreeText,
		"is_unlocked": record.Unlocked,
		"created_at":  record.CreatedAt,
		"updated_at":  record.UpdatedAt,
	})
	if err != nil {
		return translateFirestore(err, "put diagnosis")
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, token string) (diagnosis.Record, error) {
	snap, err := s.client.Collection(diagnosesCollection).Doc(token).Get(ctx)
	if err != nil {
		return diagnosis.Record{}, translateFirestore(err, "get diagnosis")
	}

	var doc struct {
		Name       string   `firestore:"name"`
		BirthDate  string   `firestore:"birth_date"`
		Result     string   `firestore:"result"`
		Tier       string   `firestore:"tier"`
		Categories []string `firestore:"categories"`
		FreeText   string   `firestore:"free_text"`
		Unlocked   bool     `firestore:"is_unlocked"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return diagnosis.Record{}, fmt.Errorf("decode diagnosis document: %w", err)
	}

	record := diagnosis.Record{
		Token:      token,
		Name:       doc.Name,
		BirthDate:  doc.BirthDate,
		Result:     doc.Result,
		Tier:       diagnosis.Tier(doc.Tier),
		Categories: doc.Categories,
		FreeText:   doc.FreeText,
		Unlocked:   doc.Unlocked,
		CreatedAt:  snap.CreateTime,
		UpdatedAt:  snap.UpdateTime,
	}
	return record, nil
}

func (s *FirestoreStore) SetUnlocked(ctx context.Context, token string) (bool, error) {
	changed := false
	doc := s.client.Collection(diagnosesCollection).Doc(token)
	// Transaction so concurrent deliveries agree on who made the transition.
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		unlocked, err := snap.DataAt("is_unlocked")
		if err != nil {
			return err
		}
		if already, ok := unlocked.(bool); ok && already {
			changed = false
			return nil
		}
		changed = true
		return tx.Update(doc, []firestore.Update{
			{Path: "is_unlocked", Value: true},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, translateFirestore(err, "unlock diagnosis")
	}
	return changed, nil
}

// Close releases the underlying gRPC connection.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func translateFirestore(err error, op string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%s: %w", op, sentinel.ErrPermission)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
