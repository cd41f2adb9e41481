package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spllit/spllit-backend/internal/database"
	"github.com/spllit/spllit-backend/internal/handlers"
	"github.com/spllit/spllit-backend/internal/middleware"
	"github.com/spllit/spllit-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis (optional cache - warn but continue without it)
	if err := services.InitRedis(); err != nil {
		log.Printf("Redis initialization warning: %v", err)
	}

	// Initialize attachment storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Presence registry and WebSocket hub
	registry := services.NewRegistry()
	hub := services.NewHub(db, registry)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve locally stored attachments
	r.Static("/uploads", "/app/uploads")

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(db, hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
				users.GET("/:userId/presence", handlers.GetUserPresence(db, hub))
			}

			// Rides routes
			rides := protected.Group("/rides")
			{
				rides.POST("", handlers.CreateRide(db, hub))
				rides.GET("/search", handlers.SearchRides(db))
				rides.GET("/mine", handlers.GetMyRides(db))
				rides.PATCH("/:rideId/status", handlers.UpdateRideStatus(db, hub))
				rides.DELETE("/:rideId", handlers.DeleteRide(db))
				rides.POST("/:rideId/join", handlers.RequestJoin(db, hub))
			}

			// Match routes
			matches := protected.Group("/matches")
			{
				matches.GET("", handlers.GetMyMatches(db))
				matches.POST("/:matchId/accept", handlers.AcceptMatch(db, hub))
				matches.POST("/:matchId/reject", handlers.RejectMatch(db, hub))
				matches.GET("/:matchId/messages", handlers.GetMatchMessages(db))
			}

			// Chat attachment upload
			chat := protected.Group("/chat")
			{
				chat.POST("/upload", handlers.UploadChatAttachment())
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
