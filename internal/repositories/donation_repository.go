package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DonationRepository defines the interface for donation data operations.
// Every status mutation is a conditional update that re-checks the stored
// status at the moment of commit; a mismatch returns a sentinel error
// instead of overwriting newer state.
type DonationRepository interface {
	CreateDonation(ctx context.Context, donation *models.Donation) error
	GetDonationByID(ctx context.Context, id string) (*models.Donation, error)
	GetDonationsByDonorID(ctx context.Context, donorID uint, skip, limit int64) ([]models.Donation, error)
	GetDonationsByAssignee(ctx context.Context, actorID uint) ([]models.Donation, error)
	GetAvailableDonations(ctx context.Context, skip, limit int64) ([]models.Donation, error)

	AssignIfPending(ctx context.Context, id string, actorID uint, deadline *time.Time, autoAssigned bool, note string) (*models.Donation, error)
	ConfirmAssignment(ctx context.Context, id string, organizationID uint) (*models.Donation, error)
	ReleaseIfExpired(ctx context.Context, id string, now time.Time) (*models.Donation, error)
	DeclineAssignment(ctx context.Context, id string, actorID uint, reason string) (*models.Donation, error)
	MarkPickedUp(ctx context.Context, id string, actorID uint, photoURL string) (*models.Donation, error)
	MarkDelivered(ctx context.Context, id string, actorID uint, recipientInfo, photoURL string) (*models.Donation, error)
	RejectDonation(ctx context.Context, id string, actorID uint, reason string) (*models.Donation, error)
	CancelDonation(ctx context.Context, id string, donorID uint, reason string) (*models.Donation, error)
}

// MongoDonationRepository implements DonationRepository for MongoDB
type MongoDonationRepository struct {
	collection *mongo.Collection
}

// NewMongoDonationRepository creates a new MongoDonationRepository
func NewMongoDonationRepository(db *mongo.Database) *MongoDonationRepository {
	return &MongoDonationRepository{collection: db.Collection("donations")}
}

// CreateDonation creates a new donation in MongoDB with status pending
func (r *MongoDonationRepository) CreateDonation(ctx context.Context, donation *models.Donation) error {
	now := time.Now()
	donation.ID = primitive.NewObjectID()
	donation.Status = models.StatusPending
	donation.CreatedAt = now
	donation.UpdatedAt = now
	donation.Tracking = []models.TrackingEntry{{
		Status:    models.StatusPending,
		Timestamp: now,
		ActorID:   donation.DonorID,
		Note:      "Donation created",
	}}
	_, err := r.collection.InsertOne(ctx, donation)
	return err
}

// GetDonationByID retrieves a donation by ID from MongoDB
func (r *MongoDonationRepository) GetDonationByID(ctx context.Context, id string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	var donation models.Donation
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&donation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &donation, nil
}

// GetDonationsByDonorID retrieves donations created by a specific donor
func (r *MongoDonationRepository) GetDonationsByDonorID(ctx context.Context, donorID uint, skip, limit int64) ([]models.Donation, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"donor_id": donorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var donations []models.Donation
	if err = cursor.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// GetDonationsByAssignee retrieves donations currently assigned to an actor
func (r *MongoDonationRepository) GetDonationsByAssignee(ctx context.Context, actorID uint) ([]models.Donation, error) {
	filter := bson.M{
		"assigned_to": actorID,
		"status":      bson.M{"$in": []models.DonationStatus{models.StatusAssigned, models.StatusPickedUp}},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "assigned_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var donations []models.Donation
	if err = cursor.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// GetAvailableDonations retrieves pending donations open to volunteer claims
func (r *MongoDonationRepository) GetAvailableDonations(ctx context.Context, skip, limit int64) ([]models.Donation, error) {
	filter := bson.M{
		"status":      models.StatusPending,
		"best_before": bson.M{"$gt": time.Now()},
	}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var donations []models.Donation
	if err = cursor.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// trackingEntry builds an audit entry for the current instant.
func trackingEntry(status models.DonationStatus, actorID uint, note string) models.TrackingEntry {
	return models.TrackingEntry{Status: status, Timestamp: time.Now(), ActorID: actorID, Note: note}
}

// findOneAndUpdate runs a conditional update and decodes the post-update
// document. mongo.ErrNoDocuments means the filter did not match, i.e. the
// caller lost a race or the precondition no longer holds.
func (r *MongoDonationRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Donation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var donation models.Donation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&donation)
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// classifyMiss turns a failed conditional update into the right sentinel by
// re-reading the document: missing id is not-found, anything else means the
// stored status (or assignee) no longer satisfied the precondition.
func (r *MongoDonationRepository) classifyMiss(ctx context.Context, id string, wantStatus models.DonationStatus, wantActor *uint, raceErr error) error {
	current, err := r.GetDonationByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != wantStatus {
		return raceErr
	}
	if wantActor != nil && (current.AssignedTo == nil || *current.AssignedTo != *wantActor) {
		return models.ErrInvalidAssignment
	}
	return raceErr
}

// AssignIfPending atomically claims a pending donation for an actor. The
// status check lives in the filter, so concurrent claimants race on the
// store and at most one wins; losers get ErrAlreadyAssigned.
func (r *MongoDonationRepository) AssignIfPending(ctx context.Context, id string, actorID uint, deadline *time.Time, autoAssigned bool, note string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	now := time.Now()
	set := bson.M{
		"status":        models.StatusAssigned,
		"assigned_to":   actorID,
		"assigned_at":   now,
		"auto_assigned": autoAssigned,
		"updated_at":    now,
	}
	if deadline != nil {
		set["confirmation_deadline"] = *deadline
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"tracking": trackingEntry(models.StatusAssigned, actorID, note)},
	}

	donation, err := r.findOneAndUpdate(ctx, bson.M{"_id": objID, "status": models.StatusPending}, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusPending, nil, models.ErrAlreadyAssigned)
		}
		return nil, err
	}
	return donation, nil
}

// ConfirmAssignment clears the confirmation deadline for the organization
// holding the assignment. It fails if the caller is not the assignee or the
// status has already moved past assigned.
func (r *MongoDonationRepository) ConfirmAssignment(ctx context.Context, id string, organizationID uint) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "status": models.StatusAssigned, "assigned_to": organizationID}
	update := bson.M{
		"$set":   bson.M{"updated_at": time.Now()},
		"$unset": bson.M{"confirmation_deadline": ""},
		"$push":  bson.M{"tracking": trackingEntry(models.StatusAssigned, organizationID, "Assignment confirmed")},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusAssigned, &organizationID, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// ReleaseIfExpired rolls an assignment whose confirmation deadline has
// passed back to pending. The deadline comparison is part of the filter, so
// a confirmation committed a moment earlier makes this a clean no-op
// (ErrInvalidTransition) rather than a lost update.
func (r *MongoDonationRepository) ReleaseIfExpired(ctx context.Context, id string, now time.Time) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{
		"_id":                   objID,
		"status":                models.StatusAssigned,
		"confirmation_deadline": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set":   bson.M{"status": models.StatusPending, "updated_at": now},
		"$unset": bson.M{"assigned_to": "", "assigned_at": "", "confirmation_deadline": ""},
		"$push":  bson.M{"tracking": trackingEntry(models.StatusTimeout, 0, "Assignment confirmation window expired")},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusAssigned, nil, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// DeclineAssignment reverts an assigned donation to pending, recording the
// decliner and reason in the audit trail.
func (r *MongoDonationRepository) DeclineAssignment(ctx context.Context, id string, actorID uint, reason string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "status": models.StatusAssigned, "assigned_to": actorID}
	update := bson.M{
		"$set":   bson.M{"status": models.StatusPending, "updated_at": time.Now()},
		"$unset": bson.M{"assigned_to": "", "assigned_at": "", "confirmation_deadline": ""},
		"$push":  bson.M{"tracking": trackingEntry(models.StatusPending, actorID, "Assignment declined: "+reason)},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusAssigned, &actorID, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// MarkPickedUp transitions an assigned donation to picked_up by its assignee
func (r *MongoDonationRepository) MarkPickedUp(ctx context.Context, id string, actorID uint, photoURL string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "status": models.StatusAssigned, "assigned_to": actorID}
	set := bson.M{"status": models.StatusPickedUp, "updated_at": time.Now()}
	if photoURL != "" {
		set["photo_url"] = photoURL
	}
	update := bson.M{
		"$set":   set,
		"$unset": bson.M{"confirmation_deadline": ""},
		"$push":  bson.M{"tracking": trackingEntry(models.StatusPickedUp, actorID, "Pickup confirmed")},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusAssigned, &actorID, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// MarkDelivered transitions a picked_up donation to delivered by its assignee
func (r *MongoDonationRepository) MarkDelivered(ctx context.Context, id string, actorID uint, recipientInfo, photoURL string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "status": models.StatusPickedUp, "assigned_to": actorID}
	set := bson.M{
		"status":         models.StatusDelivered,
		"recipient_info": recipientInfo,
		"updated_at":     time.Now(),
	}
	if photoURL != "" {
		set["delivery_photo_url"] = photoURL
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"tracking": trackingEntry(models.StatusDelivered, actorID, "Delivery confirmed")},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusPickedUp, &actorID, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// RejectDonation marks a pending donation as rejected
func (r *MongoDonationRepository) RejectDonation(ctx context.Context, id string, actorID uint, reason string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "status": models.StatusPending}
	update := bson.M{
		"$set":  bson.M{"status": models.StatusRejected, "updated_at": time.Now()},
		"$push": bson.M{"tracking": trackingEntry(models.StatusRejected, actorID, reason)},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, r.classifyMiss(ctx, id, models.StatusPending, nil, models.ErrInvalidTransition)
		}
		return nil, err
	}
	return donation, nil
}

// CancelDonation lets the donor cancel before delivery. Terminal.
func (r *MongoDonationRepository) CancelDonation(ctx context.Context, id string, donorID uint, reason string) (*models.Donation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid donation ID format: %w", err)
	}

	filter := bson.M{
		"_id":      objID,
		"donor_id": donorID,
		"status":   bson.M{"$in": models.TransitionSources(models.StatusCancelled)},
	}
	update := bson.M{
		"$set":   bson.M{"status": models.StatusCancelled, "updated_at": time.Now()},
		"$unset": bson.M{"confirmation_deadline": ""},
		"$push":  bson.M{"tracking": trackingEntry(models.StatusCancelled, donorID, reason)},
	}

	donation, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			current, getErr := r.GetDonationByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			if current.DonorID != donorID {
				return nil, models.ErrInvalidAssignment
			}
			return nil, models.ErrInvalidTransition
		}
		return nil, err
	}
	return donation, nil
}
