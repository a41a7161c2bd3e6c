package mongo

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/models"
)

const sessionsCollection = "sessions"

// SessionRepo wraps the sessions collection
type SessionRepo struct{ col *mongo.Collection }

// NewSessionRepo binds the sessions collection and ensures its indexes,
// including the TTL index that expires sessions after the retention window.
func NewSessionRepo(ctx context.Context, c *Client) (*SessionRepo, error) {
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	r := &SessionRepo{col: db.Collection(sessionsCollection)}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SessionRepo) ensureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(models.SessionRetention.Seconds())),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "host", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "channelClosed", Value: 1}, {Key: "endedAt", Value: 1}}},
	})
	return err
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.Participants == nil {
		s.Participants = []string{}
	}
	_, err := r.col.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrConflict
	}
	return err
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return normalize(&s), nil
}

// AddParticipant appends principal in a single conditional write. The filter
// only matches an active session that has a free slot and does not already
// list principal as host or participant.
func (r *SessionRepo) AddParticipant(ctx context.Context, id, principal string, now time.Time) (*models.Session, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.StatusActive,
		"host":   bson.M{"$ne": principal},
		"$and": bson.A{
			bson.M{"participants": bson.M{"$ne": principal}},
			bson.M{"participants." + strconv.Itoa(models.MaxParticipants-1): bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$push": bson.M{"participants": principal},
		"$set":  bson.M{"updatedAt": now},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// Complete moves an active session to completed. It never matches a
// completed session, so the transition happens once.
func (r *SessionRepo) Complete(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	filter := bson.M{"_id": id, "status": models.StatusActive}
	update := bson.M{"$set": bson.M{
		"status":    models.StatusCompleted,
		"endedAt":   now,
		"updatedAt": now,
	}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *SessionRepo) MarkChannelClosed(ctx context.Context, id string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"channelClosed": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	return r.find(ctx, bson.M{"status": models.StatusActive}, limit)
}

func (r *SessionRepo) ListCompletedFor(ctx context.Context, principal string, limit int) ([]models.Session, error) {
	filter := bson.M{
		"status": models.StatusCompleted,
		"$or": bson.A{
			bson.M{"host": principal},
			bson.M{"participants": principal},
		},
	}
	return r.find(ctx, filter, limit)
}

func (r *SessionRepo) ListHostActive(ctx context.Context, host string, limit int) ([]models.Session, error) {
	return r.find(ctx, bson.M{"status": models.StatusActive, "host": host}, limit)
}

// ListUnclosedCompleted returns the longest-ended sessions first so a batch of
// sessions whose teardown keeps failing cannot starve older ones.
func (r *SessionRepo) ListUnclosedCompleted(ctx context.Context, limit int) ([]models.Session, error) {
	filter := bson.M{"status": models.StatusCompleted, "channelClosed": bson.M{"$ne": true}}
	return r.findSorted(ctx, filter, bson.D{{Key: "endedAt", Value: 1}}, limit)
}

func (r *SessionRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Session, error) {
	var s models.Session
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrConditionFailed
		}
		return nil, err
	}
	return normalize(&s), nil
}

// find returns matching sessions newest first
func (r *SessionRepo) find(ctx context.Context, filter bson.M, limit int) ([]models.Session, error) {
	return r.findSorted(ctx, filter, bson.D{{Key: "createdAt", Value: -1}}, limit)
}

func (r *SessionRepo) findSorted(ctx context.Context, filter bson.M, sort bson.D, limit int) ([]models.Session, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Session{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalize(&out[i])
	}
	return out, nil
}

func normalize(s *models.Session) *models.Session {
	if s.Participants == nil {
		s.Participants = []string{}
	}
	return s
}
