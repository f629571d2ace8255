package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConsentStore remembers granted scopes per subject and client.
type ConsentStore struct {
	consents *mongo.Collection
}

func NewConsentStore(db *mongo.Database) *ConsentStore {
	return &ConsentStore{consents: db.Collection(ConsentsCollection)}
}

type consentDocument struct {
	SubjectID string    `bson:"subject_id"`
	ClientID  string    `bson:"client_id"`
	Scopes    []string  `bson:"scopes"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// FindConsentedScopes implements services.ConsentStore. No stored decision
// yields an empty set.
func (s *ConsentStore) FindConsentedScopes(ctx context.Context, subjectID, clientID string) ([]string, error) {
	var doc consentDocument
	err := s.consents.FindOne(ctx, bson.M{"subject_id": subjectID, "client_id": clientID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up consent: %w", err)
	}
	return doc.Scopes, nil
}

// SaveConsent implements services.ConsentStore. Saving replaces the prior
// decision wholesale.
func (s *ConsentStore) SaveConsent(ctx context.Context, subjectID, clientID string, scopes []string) error {
	doc := consentDocument{
		SubjectID: subjectID,
		ClientID:  clientID,
		Scopes:    scopes,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.consents.ReplaceOne(ctx,
		bson.M{"subject_id": subjectID, "client_id": clientID},
		doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}
	return nil
}
