package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitcoach/coach-backend/internal/api"
	"fitcoach/coach-backend/internal/config"
	"fitcoach/coach-backend/internal/llm"
	"fitcoach/coach-backend/internal/repository/mongo"
	"fitcoach/coach-backend/internal/service"
	"fitcoach/coach-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting AI Coach Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureTrainingRecordIndexes(ctx, appDB.Collection("training_records"))
		mongo.EnsureExerciseTypeIndexes(ctx, appDB.Collection("exercise_types"))
		mongo.EnsureRoutineIndexes(ctx, appDB.Collection("routines"))
		mongo.EnsureChatLogIndexes(ctx, appDB.Collection("chat_logs"))
		mongo.EnsureStreamSessionIndexes(ctx, appDB.Collection("stream_sessions"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Transcript Archive ---
	var archive storage.TranscriptArchive
	if cfg.S3.BucketName != "" {
		log.Println("Initializing transcript archive...")
		archive, err = storage.NewS3Archive(cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 archive: %v", err)
		}
	} else {
		log.Println("No S3 bucket configured; transcript archiving disabled.")
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	recordRepo := mongo.NewMongoTrainingRecordRepository(appDB)
	exerciseTypeRepo := mongo.NewMongoExerciseTypeRepository(appDB)
	routineRepo := mongo.NewMongoRoutineRepository(appDB)
	chatLogRepo := mongo.NewMongoChatLogRepository(appDB)
	streamRepo := mongo.NewMongoStreamSessionRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	aggregationService := service.NewAggregationService(recordRepo, time.Local)
	riskService := service.NewRiskService(recordRepo, time.Local)
	recommendService := service.NewRecommendService(aggregationService, recordRepo, exerciseTypeRepo, time.Local)
	streamService := service.NewStreamService(streamRepo, cfg.Coach.AppendRetries)
	toolService := service.NewToolService(aggregationService, riskService, recommendService, exerciseTypeRepo, routineRepo, chatLogRepo)
	historyService := service.NewChatHistoryService(chatLogRepo)
	transcriptService := service.NewTranscriptService(archive)

	llmClient := llm.New(cfg.OpenAI)
	coachService := service.NewCoachService(
		llmClient,
		toolService,
		streamService,
		aggregationService,
		riskService,
		recommendService,
		chatLogRepo,
		archive,
		cfg.OpenAI.Model,
		cfg.Coach,
	)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, coachService, streamService, historyService, transcriptService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Coach.RunBudget + 30*time.Second, // chat responses wait for the full run
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
