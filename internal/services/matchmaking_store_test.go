package services

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spllit/spllit-backend/internal/database"
	"github.com/spllit/spllit-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("store handle: %v", err)
	}
	// The in-memory database lives on a single connection
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, gender string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Gender:       gender,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedRide(t *testing.T, db *gorm.DB, owner *models.User, seats int) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		OwnerID:          owner.ID,
		Origin:           "Anna Nagar",
		Destination:      "Guindy",
		DestLat:          floatPtr(13.04),
		DestLng:          floatPtr(80.23),
		DepartureTime:    time.Now().Add(time.Hour),
		VehicleType:      models.VehicleCab,
		Seats:            seats,
		GenderPreference: models.PreferenceAny,
		Status:           models.RideStatusPending,
	}
	if err := db.Create(ride).Error; err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return ride
}

// Filling the last seat flips the ride to matched; a later accept on another
// pending match of the same ride must fail and leave that match untouched.
func TestAcceptMatch_SecondAcceptOnFullRideConflicts(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	first := seedUser(t, db, "first", "female")
	second := seedUser(t, db, "second", "male")
	ride := seedRide(t, db, owner, 1)

	matchA, err := RequestJoin(db, ride.ID, first.ID)
	if err != nil {
		t.Fatalf("join A: %v", err)
	}
	matchB, err := RequestJoin(db, ride.ID, second.ID)
	if err != nil {
		t.Fatalf("join B: %v", err)
	}

	accepted, err := AcceptMatch(db, matchA.ID, owner.ID)
	if err != nil {
		t.Fatalf("accept A: %v", err)
	}
	if accepted.Status != models.MatchStatusAccepted {
		t.Fatalf("match A should be accepted, got %s", accepted.Status)
	}
	if accepted.ChatRoomID != ChatRoomID(matchA.ID) {
		t.Fatalf("unexpected chat room %q", accepted.ChatRoomID)
	}

	var reloaded models.Ride
	if err := db.First(&reloaded, ride.ID).Error; err != nil {
		t.Fatalf("reload ride: %v", err)
	}
	if reloaded.Status != models.RideStatusMatched {
		t.Fatalf("ride with its one seat taken should be matched, got %s", reloaded.Status)
	}

	if _, err := AcceptMatch(db, matchB.ID, owner.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("accept on a full ride should conflict, got %v", err)
	}

	var b models.Match
	if err := db.First(&b, matchB.ID).Error; err != nil {
		t.Fatalf("reload match B: %v", err)
	}
	if b.Status != models.MatchStatusPending {
		t.Fatalf("losing match must stay pending, got %s", b.Status)
	}

	var acceptedCount int64
	if err := db.Model(&models.Match{}).
		Where("ride_id = ? AND status = ?", ride.ID, models.MatchStatusAccepted).
		Count(&acceptedCount).Error; err != nil {
		t.Fatalf("count accepted: %v", err)
	}
	if acceptedCount != 1 {
		t.Fatalf("accepted matches must not exceed seats, got %d", acceptedCount)
	}
}

func TestAcceptMatch_TwiceIsInvalidState(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 2)

	match, err := RequestJoin(db, ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := AcceptMatch(db, match.ID, owner.ID); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	if _, err := AcceptMatch(db, match.ID, owner.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second accept should be invalid state, got %v", err)
	}
}

func TestRejectMatch_TwiceIsInvalidState(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 1)

	match, err := RequestJoin(db, ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := RejectMatch(db, match.ID, owner.ID); err != nil {
		t.Fatalf("first reject: %v", err)
	}

	if _, err := RejectMatch(db, match.ID, owner.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second reject should be invalid state, got %v", err)
	}

	// A rejection leaves the ride on the market
	var reloaded models.Ride
	if err := db.First(&reloaded, ride.ID).Error; err != nil {
		t.Fatalf("reload ride: %v", err)
	}
	if reloaded.Status != models.RideStatusPending {
		t.Fatalf("ride should stay pending after a reject, got %s", reloaded.Status)
	}
}

func TestRequestJoin_DuplicateConflicts(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 2)

	if _, err := RequestJoin(db, ride.ID, rider.ID); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := RequestJoin(db, ride.ID, rider.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate join should conflict, got %v", err)
	}
}

func TestRequestJoin_AllowedAgainAfterRejection(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 1)

	match, err := RequestJoin(db, ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := RejectMatch(db, match.ID, owner.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if _, err := RequestJoin(db, ride.ID, rider.ID); err != nil {
		t.Fatalf("re-join after rejection should succeed, got %v", err)
	}
}

// The partial unique index is the authoritative guard: a duplicate insert that
// slips past the advisory count check must fail at the store.
func TestMatchUniqueness_StoreEnforced(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 1)

	first := models.Match{RideID: ride.ID, RequesterID: rider.ID, OwnerID: owner.ID, Status: models.MatchStatusPending}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := models.Match{RideID: ride.ID, RequesterID: rider.ID, OwnerID: owner.ID, Status: models.MatchStatusPending}
	if err := db.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate live match should hit the unique index, got %v", err)
	}

	// Rejected rows don't count against the index
	if err := db.Model(&first).Update("status", models.MatchStatusRejected).Error; err != nil {
		t.Fatalf("reject: %v", err)
	}
	again := models.Match{RideID: ride.ID, RequesterID: rider.ID, OwnerID: owner.ID, Status: models.MatchStatusPending}
	if err := db.Create(&again).Error; err != nil {
		t.Fatalf("insert after rejection should succeed, got %v", err)
	}
}

func TestMessages_PersistAndReadBackInOrder(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, "owner", "male")
	rider := seedUser(t, db, "rider", "female")
	ride := seedRide(t, db, owner, 1)

	match, err := RequestJoin(db, ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := AcceptMatch(db, match.ID, owner.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	base := time.Now().Add(-time.Minute)
	for i, content := range []string{"where are you?", "at the gate", "coming"} {
		message := models.Message{
			MatchID:  match.ID,
			SenderID: owner.ID,
			Content:  content,
			Type:     models.MessageTypeText,
		}
		message.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.Create(&message).Error; err != nil {
			t.Fatalf("persist message %d: %v", i, err)
		}
	}

	var history []models.Message
	if err := db.Where("match_id = ?", match.ID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Content != "where are you?" || history[2].Content != "coming" {
		t.Fatalf("history out of order: %q ... %q", history[0].Content, history[2].Content)
	}
}

func TestDeactivateLocationPings_OnlyTargetUser(t *testing.T) {
	db := openTestDB(t)
	rider := seedUser(t, db, "rider", "female")
	other := seedUser(t, db, "other", "male")

	pings := []models.LocationPing{
		{UserID: rider.ID, Latitude: 13.04, Longitude: 80.23, Active: true},
		{UserID: rider.ID, Latitude: 13.05, Longitude: 80.24, Active: true},
		{UserID: other.ID, Latitude: 13.06, Longitude: 80.25, Active: true},
	}
	for i := range pings {
		if err := db.Create(&pings[i]).Error; err != nil {
			t.Fatalf("seed ping %d: %v", i, err)
		}
	}

	if err := DeactivateLocationPings(db, rider.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var active int64
	if err := db.Model(&models.LocationPing{}).
		Where("user_id = ? AND active = ?", rider.ID, true).
		Count(&active).Error; err != nil {
		t.Fatalf("count rider pings: %v", err)
	}
	if active != 0 {
		t.Fatalf("rider should have no active pings, got %d", active)
	}

	var otherActive int64
	if err := db.Model(&models.LocationPing{}).
		Where("user_id = ? AND active = ?", other.ID, true).
		Count(&otherActive).Error; err != nil {
		t.Fatalf("count other pings: %v", err)
	}
	if otherActive != 1 {
		t.Fatalf("other user's ping must stay active, got %d", otherActive)
	}
}
