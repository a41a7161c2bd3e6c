package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/models"
)

const invitesCollection = "invite_tokens"

// InviteRepo wraps the invite_tokens collection
type InviteRepo struct{ col *mongo.Collection }

func NewInviteRepo(ctx context.Context, c *Client) (*InviteRepo, error) {
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	r := &InviteRepo{col: db.Collection(invitesCollection)}
	_, err = r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "used", Value: 1}, {Key: "expiresAt", Value: 1}}},
		{Keys: bson.D{{Key: "session", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *InviteRepo) Create(ctx context.Context, t *models.InviteToken) error {
	_, err := r.col.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrConflict
	}
	return err
}

func (r *InviteRepo) ListRedeemable(ctx context.Context, now time.Time, limit int) ([]models.InviteToken, error) {
	return r.find(ctx, bson.M{"used": false, "expiresAt": bson.M{"$gt": now}}, limit)
}

func (r *InviteRepo) ListConsumed(ctx context.Context, now time.Time, limit int) ([]models.InviteToken, error) {
	filter := bson.M{"used": true, "revoked": bson.M{"$ne": true}, "expiresAt": bson.M{"$gt": now}}
	return r.find(ctx, filter, limit)
}

// Claim flips used from false to true. It fails with ErrConditionFailed when
// the token is already used or has expired.
func (r *InviteRepo) Claim(ctx context.Context, id string, now time.Time) error {
	filter := bson.M{"_id": id, "used": false, "expiresAt": bson.M{"$gt": now}}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrConditionFailed
	}
	return nil
}

func (r *InviteRepo) MarkUsed(ctx context.Context, id string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *InviteRepo) RevokeUnused(ctx context.Context, sessionID, keepID string) (int, error) {
	filter := bson.M{"session": sessionID, "used": false, "_id": bson.M{"$ne": keepID}}
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"used": true, "revoked": true}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *InviteRepo) find(ctx context.Context, filter bson.M, limit int) ([]models.InviteToken, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.InviteToken{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
