package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"adaptive-intel-api/pkg/models"
	"adaptive-intel-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// PredictionHandler は予測APIのハンドラです。
type PredictionHandler struct {
	inference *services.InferenceService
	features  *services.FeatureService
}

// NewPredictionHandler 新しいPredictionHandlerを生成
func NewPredictionHandler(inference *services.InferenceService, features *services.FeatureService) *PredictionHandler {
	return &PredictionHandler{
		inference: inference,
		features:  features,
	}
}

// Predict は学習者とトピックの組に対する統合予測を返します。
// スキルギャップ推定・難易度分類・ランキング・適応アクションを1レスポンスに束ねます。
func (h *PredictionHandler) Predict(c *gin.Context) {
	requestID := c.GetString("request_id")
	start := time.Now()

	var input models.PredictionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    "リクエストの形式が正しくありません: " + err.Error(),
			RequestID: requestID,
		})
		return
	}

	// 全フィールドの制約を1パスで検証し、違反をまとめて返す
	if err := input.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    err.Error(),
			RequestID: requestID,
		})
		return
	}

	log.Printf("Request %s: user=%s topic=%s の予測を開始", requestID, input.UserID, input.TopicID)

	result, err := h.inference.RunInference(&input)
	if err != nil {
		if errors.Is(err, models.ErrModelsNotLoaded) {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:     "ServiceNotReady",
				Detail:    "Models are not loaded. Please ensure training has been completed.",
				RequestID: requestID,
			})
			return
		}
		// 内部エラーの詳細はログにのみ残し、呼び出し元には相関IDだけを返す
		log.Printf("Request %s: 推論に失敗 - %v", requestID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "InternalServerError",
			Detail:    "Prediction failed",
			RequestID: requestID,
		})
		return
	}

	// クライアントが切断済みなら結果を破棄する（成功レスポンスとして記録しない）
	if c.Request.Context().Err() != nil {
		log.Printf("Request %s: キャンセルされたため結果を破棄", requestID)
		c.Abort()
		return
	}

	predictionTimeMs := float64(time.Since(start).Microseconds()) / 1000.0

	c.JSON(http.StatusOK, models.PredictionResponse{
		SkillGap:         result.SkillGap,
		Difficulty:       result.Difficulty,
		Ranking:          result.Ranking,
		Adaptation:       result.Adaptation,
		RequestID:        requestID,
		PredictionTimeMs: round2(predictionTimeMs),
	})
}

// GetFeatureNames は特徴ベクトルの順序付き特徴量名を返します。
// オフライン学習側との契約確認用のメタデータエンドポイントです。
func (h *PredictionHandler) GetFeatureNames(c *gin.Context) {
	names := h.features.FeatureNames()
	c.JSON(http.StatusOK, gin.H{
		"feature_names": names,
		"vector_size":   len(names),
	})
}
