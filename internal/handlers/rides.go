package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spllit/spllit-backend/internal/models"
	"github.com/spllit/spllit-backend/internal/services"
	"gorm.io/gorm"
)

// CreateRide handles the creation of a new ride posting
func CreateRide(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Origin           string    `json:"origin" binding:"required"`
			Destination      string    `json:"destination" binding:"required"`
			OriginLat        *float64  `json:"originLat"`
			OriginLng        *float64  `json:"originLng"`
			DestLat          *float64  `json:"destLat"`
			DestLng          *float64  `json:"destLng"`
			DepartureTime    time.Time `json:"departureTime" binding:"required"`
			VehicleType      string    `json:"vehicleType" binding:"required,oneof=cab bike auto"`
			Seats            int       `json:"seats" binding:"required,min=1,max=4"`
			Fare             *float64  `json:"fare"`
			GenderPreference string    `json:"genderPreference" binding:"omitempty,oneof=any male female"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Check if the scheduled time is in the future
		if input.DepartureTime.Before(time.Now()) {
			c.JSON(400, gin.H{"error": "Departure time must be in the future"})
			return
		}

		if input.Fare != nil && *input.Fare <= 0 {
			c.JSON(400, gin.H{"error": "Fare must be positive"})
			return
		}

		if input.GenderPreference == "" {
			input.GenderPreference = models.PreferenceAny
		}

		ride := models.Ride{
			OwnerID:          userId,
			Origin:           input.Origin,
			Destination:      input.Destination,
			OriginLat:        input.OriginLat,
			OriginLng:        input.OriginLng,
			DestLat:          input.DestLat,
			DestLng:          input.DestLng,
			DepartureTime:    input.DepartureTime,
			VehicleType:      input.VehicleType,
			Seats:            input.Seats,
			Fare:             input.Fare,
			GenderPreference: input.GenderPreference,
			Status:           models.RideStatusPending,
		}

		if err := db.Create(&ride).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create ride"})
			return
		}

		services.NotifyRideCreated(hub, &ride)

		c.JSON(201, ride)
	}
}

// SearchRides returns compatible pending rides ranked by the match engine.
// No hits is an empty list, not an error.
func SearchRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		destLat, err := strconv.ParseFloat(c.Query("destLat"), 64)
		if err != nil || destLat < -90 || destLat > 90 {
			c.JSON(400, gin.H{"error": "Invalid destLat"})
			return
		}
		destLng, err := strconv.ParseFloat(c.Query("destLng"), 64)
		if err != nil || destLng < -180 || destLng > 180 {
			c.JSON(400, gin.H{"error": "Invalid destLng"})
			return
		}
		departureTime, err := time.Parse(time.RFC3339, c.Query("departureTime"))
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid departureTime, expected RFC3339"})
			return
		}

		params := services.SearchParams{
			SearcherID:       userId,
			DestLat:          destLat,
			DestLng:          destLng,
			DepartureTime:    departureTime,
			GenderPreference: c.Query("genderPref"),
		}
		if v := c.Query("timeWindow"); v != "" {
			window, err := strconv.Atoi(v)
			if err != nil || window <= 0 {
				c.JSON(400, gin.H{"error": "Invalid timeWindow"})
				return
			}
			params.TimeWindowMinutes = window
		}
		if v := c.Query("maxDistance"); v != "" {
			maxDistance, err := strconv.ParseFloat(v, 64)
			if err != nil || maxDistance <= 0 {
				c.JSON(400, gin.H{"error": "Invalid maxDistance"})
				return
			}
			params.MaxDistanceKm = maxDistance
		}

		results, err := services.SearchRides(db, params)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"results": results, "count": len(results)})
	}
}

// GetMyRides retrieves all rides posted by the authenticated user
func GetMyRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var rides []models.Ride
		if err := db.Where("owner_id = ?", userId).
			Order("departure_time DESC").
			Find(&rides).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch rides"})
			return
		}

		c.JSON(200, rides)
	}
}

// UpdateRideStatus lets the owner close out a ride (completed or cancelled)
func UpdateRideStatus(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID := c.Param("rideId")
		userId := c.GetUint("userId")

		var input struct {
			Status string `json:"status" binding:"required,oneof=completed cancelled"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var ride models.Ride
		if err := db.First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if ride.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized to update this ride"})
			return
		}

		if ride.Status == models.RideStatusCompleted || ride.Status == models.RideStatusCancelled {
			c.JSON(409, gin.H{"error": "Ride is already closed"})
			return
		}

		ride.Status = input.Status
		if err := db.Save(&ride).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update ride status"})
			return
		}

		services.NotifyRideClosed(hub, db, &ride)

		c.JSON(200, gin.H{
			"message": "Ride status updated successfully",
			"rideId":  ride.ID,
			"status":  ride.Status,
		})
	}
}

// DeleteRide soft deletes a ride
func DeleteRide(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID := c.Param("rideId")
		userId := c.GetUint("userId")

		var ride models.Ride
		if err := db.First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		// Check if the user is the owner of the ride
		if ride.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized to delete this ride"})
			return
		}

		// Soft delete the ride
		if err := db.Delete(&ride).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to delete ride"})
			return
		}

		c.JSON(200, gin.H{"message": "Ride successfully deleted"})
	}
}
