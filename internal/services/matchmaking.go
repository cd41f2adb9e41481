package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/observability"
	"github.com/spllit/spllit-backend/pkg/utils"
	"gorm.io/gorm"
)

// Search defaults
const (
	DefaultTimeWindowMinutes = 30
	DefaultMaxDistanceKm     = 2.0

	// Candidates whose departure times differ by no more than this are treated
	// as tied on time and ordered by distance instead.
	timeTieBandMinutes = 5.0
)

// SearchParams describes one ride search. Zero values for the window and
// distance fields fall back to the defaults above.
type SearchParams struct {
	SearcherID        uint
	DestLat           float64
	DestLng           float64
	DepartureTime     time.Time
	TimeWindowMinutes int
	MaxDistanceKm     float64
	GenderPreference  string // optional; "" and "any" disable the searcher-side filter
}

// RideCandidate is a ranked search hit.
type RideCandidate struct {
	Ride            models.Ride `json:"ride"`
	DistanceKm      float64     `json:"distanceKm"`
	TimeDiffMinutes float64     `json:"timeDiffMinutes"`
}

// SearchRides returns pending rides compatible with the given destination and
// departure time, ranked by time difference with distance breaking near-ties.
// An empty result is not an error.
func SearchRides(db *gorm.DB, params SearchParams) ([]RideCandidate, error) {
	if params.TimeWindowMinutes <= 0 {
		params.TimeWindowMinutes = DefaultTimeWindowMinutes
	}
	if params.MaxDistanceKm <= 0 {
		params.MaxDistanceKm = DefaultMaxDistanceKm
	}

	var searcher models.User
	if err := db.First(&searcher, params.SearcherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, err
	}

	// The departure window bounds the SQL scan; distance and gender are
	// filtered in memory since they need the haversine and both profiles.
	window := time.Duration(params.TimeWindowMinutes) * time.Minute
	var rides []models.Ride
	err := db.Preload("Owner").
		Where("status = ? AND owner_id != ?", models.RideStatusPending, params.SearcherID).
		Where("departure_time BETWEEN ? AND ?",
			params.DepartureTime.Add(-window),
			params.DepartureTime.Add(window)).
		Find(&rides).Error
	if err != nil {
		return nil, err
	}

	candidates := filterCandidates(rides, params, searcher.Gender)
	sortCandidates(candidates)

	observability.SearchesTotal.Inc()
	return candidates, nil
}

// filterCandidates applies the distance, time-window and gender checks.
func filterCandidates(rides []models.Ride, params SearchParams, searcherGender string) []RideCandidate {
	candidates := make([]RideCandidate, 0, len(rides))
	for _, ride := range rides {
		if !ride.HasCoordinates() {
			continue
		}
		if !utils.WithinWindow(params.DepartureTime, ride.DepartureTime, params.TimeWindowMinutes) {
			continue
		}
		distance := utils.HaversineDistance(params.DestLat, params.DestLng, *ride.DestLat, *ride.DestLng)
		if distance > params.MaxDistanceKm {
			continue
		}
		ownerGender := ""
		if ride.Owner != nil {
			ownerGender = ride.Owner.Gender
		}
		if !genderCompatible(ride.GenderPreference, ownerGender, params.GenderPreference, searcherGender) {
			continue
		}
		candidates = append(candidates, RideCandidate{
			Ride:            ride,
			DistanceKm:      distance,
			TimeDiffMinutes: utils.MinutesApart(params.DepartureTime, ride.DepartureTime),
		})
	}
	return candidates
}

// genderCompatible applies the preference check in both directions: the ride
// owner's stated preference against the searcher's gender, and the searcher's
// stated preference against the owner's gender.
func genderCompatible(ridePref, ownerGender, searcherPref, searcherGender string) bool {
	if ridePref != "" && ridePref != models.PreferenceAny && ridePref != searcherGender {
		return false
	}
	if searcherPref != "" && searcherPref != models.PreferenceAny && searcherPref != ownerGender {
		return false
	}
	return true
}

// sortCandidates orders by time difference, except that candidates within the
// tie band of each other are ordered by distance. This is a single custom
// comparator, not a two-level sort.
func sortCandidates(candidates []RideCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		dt := candidates[i].TimeDiffMinutes - candidates[j].TimeDiffMinutes
		if math.Abs(dt) <= timeTieBandMinutes {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return dt < 0
	})
}

// ChatRoomID is the room identifier for a match. Deterministic so a
// reconnecting client can re-derive it.
func ChatRoomID(matchID uint) string {
	return fmt.Sprintf("match_%d", matchID)
}

// RequestJoin creates a pending match from requester against the ride.
func RequestJoin(db *gorm.DB, rideID, requesterID uint) (*models.Match, error) {
	var ride models.Ride
	if err := db.First(&ride, rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("ride")
		}
		return nil, err
	}
	if ride.Status != models.RideStatusPending {
		return nil, notFound("ride is no longer open")
	}
	if ride.OwnerID == requesterID {
		return nil, conflict("cannot join your own ride")
	}

	// At most one non-rejected match per (ride, requester). The count gives a
	// clean error on the common path; the partial unique index backing it
	// catches concurrent duplicates at the insert.
	var existing int64
	err := db.Model(&models.Match{}).
		Where("ride_id = ? AND requester_id = ? AND status != ?",
			rideID, requesterID, models.MatchStatusRejected).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, conflict("join already requested")
	}

	match := models.Match{
		RideID:      rideID,
		RequesterID: requesterID,
		OwnerID:     ride.OwnerID,
		Status:      models.MatchStatusPending,
	}
	if err := db.Create(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("join already requested")
		}
		return nil, err
	}
	match.Ride = &ride

	observability.MatchRequestsTotal.Inc()
	return &match, nil
}

// AcceptMatch flips a pending match to accepted. The status update is a
// compare-and-set so a concurrent accept or reject loses cleanly. The accept
// that fills the ride's last seat also flips the ride to "matched", taking it
// off the open market.
func AcceptMatch(db *gorm.DB, matchID, actingUserID uint) (*models.Match, error) {
	match, err := loadMatchForResolution(db, matchID, actingUserID)
	if err != nil {
		return nil, err
	}
	if match.Ride.Status != models.RideStatusPending {
		return nil, conflict("ride is no longer open")
	}

	now := time.Now()
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Touching the ride row first re-validates the pending status under the
	// row lock, so concurrent accepts on the same ride serialize here and the
	// seat count below is accurate.
	res := tx.Model(&models.Ride{}).
		Where("id = ? AND status = ?", match.RideID, models.RideStatusPending).
		Update("updated_at", now)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflict("ride is no longer open")
	}

	res = tx.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":       models.MatchStatusAccepted,
			"chat_room_id": ChatRoomID(matchID),
			"resolved_at":  now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, invalidState("match is not pending")
	}

	var accepted int64
	if err := tx.Model(&models.Match{}).
		Where("ride_id = ? AND status = ?", match.RideID, models.MatchStatusAccepted).
		Count(&accepted).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if accepted >= int64(match.Ride.Seats) {
		if err := tx.Model(&models.Ride{}).
			Where("id = ?", match.RideID).
			Update("status", models.RideStatusMatched).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	match.Status = models.MatchStatusAccepted
	match.ChatRoomID = ChatRoomID(matchID)
	match.ResolvedAt = &now

	observability.MatchesAcceptedTotal.Inc()
	return match, nil
}

// RejectMatch flips a pending match to rejected. The ride stays open for
// other requesters.
func RejectMatch(db *gorm.DB, matchID, actingUserID uint) (*models.Match, error) {
	match, err := loadMatchForResolution(db, matchID, actingUserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := db.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":      models.MatchStatusRejected,
			"resolved_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalidState("match is not pending")
	}

	match.Status = models.MatchStatusRejected
	match.ResolvedAt = &now
	return match, nil
}

// loadMatchForResolution fetches a match with its ride and checks that the
// actor owns the ride and the match is still pending. The pending check is
// advisory only; the compare-and-set in the caller is the authoritative guard.
func loadMatchForResolution(db *gorm.DB, matchID, actingUserID uint) (*models.Match, error) {
	var match models.Match
	if err := db.Preload("Ride").Preload("Requester").First(&match, matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("match")
		}
		return nil, err
	}
	if match.OwnerID != actingUserID {
		return nil, forbidden("only the ride owner can resolve this match")
	}
	if match.Status != models.MatchStatusPending {
		return nil, invalidState("match is not pending")
	}
	return &match, nil
}

// GetMatchForParticipant returns the match if userID is either side of it.
func GetMatchForParticipant(db *gorm.DB, matchID, userID uint) (*models.Match, error) {
	var match models.Match
	if err := db.First(&match, matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("match")
		}
		return nil, err
	}
	if !match.IsParticipant(userID) {
		return nil, forbidden("not a participant of this match")
	}
	return &match, nil
}

// ActiveMatchIDs lists match ids the user participates in that are not
// rejected, used to scope presence broadcasts on connect/disconnect.
func ActiveMatchIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.Match{}).
		Where("(owner_id = ? OR requester_id = ?) AND status != ?",
			userID, userID, models.MatchStatusRejected).
		Pluck("id", &ids).Error
	return ids, err
}
