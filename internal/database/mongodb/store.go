// Package mongodb stores accounts in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"accounts/internal/database"
)

const collectionName = "accounts"

type nameDoc struct {
	First string `bson:"first"`
	Last  string `bson:"last"`
}

type resetDoc struct {
	RequestedAt time.Time `bson:"requestedAt"`
	Token       string    `bson:"token"`
	ExpiresAt   time.Time `bson:"expiresAt"`
}

type accountDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Phone     string    `bson:"phone,omitempty"`
	Password  string    `bson:"password,omitempty"`
	IsActive  bool      `bson:"isActive"`
	Name      nameDoc   `bson:"name"`
	Reset     *resetDoc `bson:"forgotpassword,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func fromAccount(a *database.Account) *accountDoc {
	doc := &accountDoc{
		ID:        a.ID,
		Email:     a.Email,
		Phone:     a.Phone,
		Password:  a.PasswordHash,
		IsActive:  a.IsActive,
		Name:      nameDoc{First: a.Name.First, Last: a.Name.Last},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Reset != nil {
		doc.Reset = &resetDoc{
			RequestedAt: a.Reset.RequestedAt,
			Token:       a.Reset.Token,
			ExpiresAt:   a.Reset.ExpiresAt,
		}
	}
	return doc
}

func (d *accountDoc) toAccount() *database.Account {
	a := &database.Account{
		ID:           d.ID,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.Password,
		IsActive:     d.IsActive,
		Name:         database.Name{First: d.Name.First, Last: d.Name.Last},
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Reset != nil {
		a.Reset = &database.ResetState{
			RequestedAt: d.Reset.RequestedAt,
			Token:       d.Reset.Token,
			ExpiresAt:   d.Reset.ExpiresAt,
		}
	}
	return a
}

// Store is the document implementation of database.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ database.Store = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures the indexes the
// store relies on exist in dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	log.Debugw("MongoDB connected", "database", dbName)

	s := &Store{
		client: client,
		coll:   client.Database(dbName).Collection(collectionName),
		now:    time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "forgotpassword.token", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"forgotpassword.token": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter any) (*database.Account, error) {
	var doc accountDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return doc.toAccount(), nil
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*database.Account, error) {
	if handle == "" {
		return nil, database.ErrNotFound
	}
	a, err := s.findOne(ctx, bson.M{"email": strings.ToLower(handle)})
	if !errors.Is(err, database.ErrNotFound) {
		return a, err
	}
	return s.findOne(ctx, bson.M{"phone": handle})
}

func (s *Store) FindByID(ctx context.Context, id string) (*database.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) List(ctx context.Context) ([]database.Account, error) {
	opts := options.Find().
		SetProjection(bson.M{"password": 0, "forgotpassword": 0}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]database.Account, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toAccount())
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, a *database.Account) error {
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, fromAccount(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return database.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func patchDocument(p database.AccountPatch) bson.M {
	set := bson.M{}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.PasswordHash != nil {
		set["password"] = *p.PasswordHash
	}
	if p.IsActive != nil {
		set["isActive"] = *p.IsActive
	}
	if p.Name != nil {
		if p.Name.First != nil {
			set["name.first"] = *p.Name.First
		}
		if p.Name.Last != nil {
			set["name.last"] = *p.Name.Last
		}
	}
	return set
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update any) (*database.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDoc
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return doc.toAccount(), nil
}

func (s *Store) Update(ctx context.Context, id string, patch database.AccountPatch) (*database.Account, error) {
	set := patchDocument(patch)
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}
	set["updatedAt"] = s.now().UTC()

	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) SetResetState(ctx context.Context, id string, state database.ResetState) error {
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"forgotpassword": resetDoc{
			RequestedAt: state.RequestedAt,
			Token:       state.Token,
			ExpiresAt:   state.ExpiresAt,
		},
		"updatedAt": s.now().UTC(),
	}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func resetFilter(digest string, now time.Time) bson.M {
	return bson.M{
		"forgotpassword.token":     digest,
		"forgotpassword.expiresAt": bson.M{"$gt": now},
	}
}

func (s *Store) FindByResetToken(ctx context.Context, digest string, now time.Time) (*database.Account, error) {
	if digest == "" {
		return nil, database.ErrTokenNotRedeemable
	}
	a, err := s.findOne(ctx, resetFilter(digest, now))
	if errors.Is(err, database.ErrNotFound) {
		return nil, database.ErrTokenNotRedeemable
	}
	return a, err
}

// RedeemReset matches and clears the token in a single findAndModify, which
// MongoDB applies atomically to one document.
func (s *Store) RedeemReset(ctx context.Context, digest string, now time.Time, passwordHash string) (*database.Account, error) {
	if digest == "" {
		return nil, database.ErrTokenNotRedeemable
	}

	a, err := s.findOneAndUpdate(ctx, resetFilter(digest, now), bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now},
		"$unset": bson.M{"forgotpassword": ""},
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, database.ErrTokenNotRedeemable
	}
	return a, err
}

// Truncate removes every account.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
