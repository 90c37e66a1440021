package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xxxsen/mauth/internal/model"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
)

type MongoUserStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

func NewMongoUserStore(client *mongo.Client, database, collection string) *MongoUserStore {
	return &MongoUserStore{
		client: client,
		users:  client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the unique email index and the token lookup
// indexes. It is idempotent.
func (r *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *MongoUserStore) Save(ctx context.Context, user *model.User) error {
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *MongoUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": at, "updatedAt": at}})
}

func (r *MongoUserStore) SetVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id, "isVerified": false}, bson.M{"$set": bson.M{
		"verificationToken":          token,
		"verificationTokenExpiresAt": expiresAt,
		"updatedAt":                  now,
	}})
}

func (r *MongoUserStore) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": expiresAt,
		"updatedAt":              now,
	}})
}

func (r *MongoUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	})
}

func (r *MongoUserStore) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	filter := bson.M{
		"verificationToken":          token,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now},
		"$unset": bson.M{"verificationToken": "", "verificationTokenExpiresAt": ""},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *MongoUserStore) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	filter := bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpiresAt": ""},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *MongoUserStore) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	verified, err := r.users.UpdateMany(ctx,
		bson.M{"verificationTokenExpiresAt": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"verificationToken": "", "verificationTokenExpiresAt": ""}},
	)
	if err != nil {
		return 0, err
	}
	reset, err := r.users.UpdateMany(ctx,
		bson.M{"resetPasswordExpiresAt": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpiresAt": ""}},
	)
	if err != nil {
		return verified.ModifiedCount, err
	}
	return verified.ModifiedCount + reset.ModifiedCount, nil
}

func (r *MongoUserStore) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserStore) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// findOneAndUpdate matches and mutates in one server-side operation, so a
// token can only be redeemed by a single caller.
func (r *MongoUserStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.User, error) {
	var user model.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
