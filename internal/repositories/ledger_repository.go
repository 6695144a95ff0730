package repositories

import (
	"context"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LedgerDeliveryUpdate carries the per-delivery changes the reward service
// computed: points are added via $inc, progress fields are set outright.
type LedgerDeliveryUpdate struct {
	Points             int
	Servings           int
	Level              int
	NextLevelThreshold int
	StreakDays         int
	LongestStreak      int
	ActivityDate       time.Time
}

// LedgerRepository defines the interface for volunteer ledger operations
type LedgerRepository interface {
	GetOrCreate(ctx context.Context, volunteerID uint) (*models.VolunteerLedger, error)
	GetByVolunteerID(ctx context.Context, volunteerID uint) (*models.VolunteerLedger, error)
	RecordDelivery(ctx context.Context, volunteerID uint, update LedgerDeliveryUpdate) error
	AwardAchievement(ctx context.Context, volunteerID uint, achievement models.Achievement) (bool, error)
	GetLeaderboard(ctx context.Context, period models.LeaderboardPeriod, limit int64) ([]models.VolunteerLedger, error)
	SetLeaderboardVisibility(ctx context.Context, volunteerID uint, visible bool) error
}

// MongoLedgerRepository implements LedgerRepository for MongoDB
type MongoLedgerRepository struct {
	collection *mongo.Collection
}

// NewMongoLedgerRepository creates a new MongoLedgerRepository
func NewMongoLedgerRepository(db *mongo.Database) *MongoLedgerRepository {
	return &MongoLedgerRepository{collection: db.Collection("volunteer_ledgers")}
}

// GetOrCreate fetches a volunteer's ledger, creating an empty one on first
// use. The upsert keeps concurrent first-delivery and profile-fetch calls
// from inserting duplicates.
func (r *MongoLedgerRepository) GetOrCreate(ctx context.Context, volunteerID uint) (*models.VolunteerLedger, error) {
	now := time.Now()
	filter := bson.M{"volunteer_id": volunteerID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":                  primitive.NewObjectID(),
			"volunteer_id":         volunteerID,
			"total_points":         0,
			"monthly_points":       0,
			"weekly_points":        0,
			"experience_points":    0,
			"level":                1,
			"next_level_threshold": 100,
			"stats":                models.LedgerStats{},
			"achievements":         []models.Achievement{},
			"show_on_leaderboard":  true,
			"created_at":           now,
			"updated_at":           now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var ledger models.VolunteerLedger
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ledger); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// GetByVolunteerID retrieves a ledger without creating one
func (r *MongoLedgerRepository) GetByVolunteerID(ctx context.Context, volunteerID uint) (*models.VolunteerLedger, error) {
	var ledger models.VolunteerLedger
	err := r.collection.FindOne(ctx, bson.M{"volunteer_id": volunteerID}).Decode(&ledger)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

// RecordDelivery applies one delivery's worth of points and progress. Point
// and delivery counters use $inc so concurrent deliveries never lose an
// addition; level and streak are recomputed values from the reward service
// and land latest-writer-wins. Two deliveries racing can briefly persist a
// level computed from a stale experience read, but the counters themselves
// never lose points, so the next recompute restores the correct level.
func (r *MongoLedgerRepository) RecordDelivery(ctx context.Context, volunteerID uint, u LedgerDeliveryUpdate) error {
	update := bson.M{
		"$inc": bson.M{
			"total_points":           u.Points,
			"monthly_points":         u.Points,
			"weekly_points":          u.Points,
			"experience_points":      u.Points,
			"stats.total_deliveries": 1,
			"stats.total_servings":   u.Servings,
		},
		"$set": bson.M{
			"level":                    u.Level,
			"next_level_threshold":     u.NextLevelThreshold,
			"stats.streak_days":        u.StreakDays,
			"stats.longest_streak":     u.LongestStreak,
			"stats.last_activity_date": u.ActivityDate,
			"updated_at":               time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"volunteer_id": volunteerID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AwardAchievement pushes a badge only if the volunteer does not already
// hold it. Returns false when the badge was already present, which makes
// re-awarding idempotent.
func (r *MongoLedgerRepository) AwardAchievement(ctx context.Context, volunteerID uint, achievement models.Achievement) (bool, error) {
	filter := bson.M{
		"volunteer_id":          volunteerID,
		"achievements.badge_id": bson.M{"$ne": achievement.BadgeID},
	}
	update := bson.M{
		"$push": bson.M{"achievements": achievement},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// leaderboardSortField maps a period to the points column that ranks it.
func leaderboardSortField(period models.LeaderboardPeriod) string {
	switch period {
	case models.PeriodMonthly:
		return "monthly_points"
	case models.PeriodWeekly:
		return "weekly_points"
	default:
		return "total_points"
	}
}

// GetLeaderboard returns the top visible ledgers for a period
func (r *MongoLedgerRepository) GetLeaderboard(ctx context.Context, period models.LeaderboardPeriod, limit int64) ([]models.VolunteerLedger, error) {
	filter := bson.M{"show_on_leaderboard": true}
	findOptions := options.Find().
		SetSort(bson.D{{Key: leaderboardSortField(period), Value: -1}, {Key: "volunteer_id", Value: 1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ledgers []models.VolunteerLedger
	if err = cursor.All(ctx, &ledgers); err != nil {
		return nil, err
	}
	return ledgers, nil
}

// SetLeaderboardVisibility toggles whether a volunteer appears on leaderboards
func (r *MongoLedgerRepository) SetLeaderboardVisibility(ctx context.Context, volunteerID uint, visible bool) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"volunteer_id": volunteerID},
		bson.M{"$set": bson.M{"show_on_leaderboard": visible, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
