package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	config "adaptive-intel-api/configs"
	"adaptive-intel-api/pkg/handlers"
	"adaptive-intel-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// サービスの初期化
	metricsService := services.NewMetricsService()
	featureService := services.NewFeatureService()
	registry := services.NewModelRegistryService(
		cfg.SkillGapModelPath,
		cfg.DifficultyModelPath,
		cfg.RankingModelPath,
	)
	inferenceService := services.NewInferenceService(featureService, registry, metricsService, cfg.Thresholds)
	rateLimiter := services.NewRateLimiterService(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitEnabled)
	securityService := services.NewSecurityService(cfg.APIKeys, rateLimiter)

	// 起動時にモデルをロード。失敗してもプロセスは起動し、
	// /health は応答可能なまま推論のみ503を返す。
	if err := registry.Load(); err != nil {
		log.Printf("Warning: モデルのロードに失敗しました。学習スクリプトを先に実行してください: %v", err)
	}

	// ハンドラーの初期化
	predictionHandler := handlers.NewPredictionHandler(inferenceService, featureService)
	batchHandler := handlers.NewBatchHandler(inferenceService)
	adminHandler := handlers.NewAdminHandler(registry)

	// Ginルーターの初期化
	r := gin.Default()

	// リクエストIDをすべてのレスポンスに付与するミドルウェア
	r.Use(func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		processTime := float64(time.Since(start).Microseconds()) / 1000.0
		log.Printf("Request %s completed in %.2fms", requestID, processTime)
	})

	// ミドルウェアの登録（メトリクス → CORS → ゲートキーパーの順）
	r.Use(metricsService.Middleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-Key")
	r.Use(cors.New(corsConfig))

	r.Use(securityService.Middleware())

	// 認証不要のエンドポイント
	r.GET("/health", adminHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	{
		v1.POST("/predict", predictionHandler.Predict)
		v1.POST("/predict/batch", batchHandler.PredictBatch)
		v1.GET("/features", predictionHandler.GetFeatureNames)

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.POST("/reload-models", adminHandler.ReloadModels)
		}
	}

	// シグナルでキャンセルされるプロセス全体のコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// レートリミッタの定期クリーンアップを起動（シャットダウン時に停止）
	rateLimiter.StartSweeper(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Starting Adaptive Learning Intelligence Engine on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// シグナル受信までブロック
	<-ctx.Done()
	log.Println("Shutting down Adaptive Learning Intelligence Engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Println("Shutdown complete")
}
