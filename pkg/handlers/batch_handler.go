package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"adaptive-intel-api/pkg/models"
	"adaptive-intel-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// maxBatchRows はバッチ予測で処理する最大データ行数です。
const maxBatchRows = 1000

// BatchHandler はファイルアップロードによるバッチ予測のハンドラです。
type BatchHandler struct {
	inference *services.InferenceService
}

// NewBatchHandler 新しいBatchHandlerを生成
func NewBatchHandler(inference *services.InferenceService) *BatchHandler {
	return &BatchHandler{
		inference: inference,
	}
}

// PredictBatch はアップロードされた .xlsx / .csv ファイルの各行に対して
// 予測パイプラインを実行し、行ごとの結果を返します。
// ヘッダー行にはPredictionInputの10フィールド名が必要です。
func (h *BatchHandler) PredictBatch(c *gin.Context) {
	requestID := c.GetString("request_id")

	c.Request.ParseMultipartForm(10 << 20) // 10MB limit

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    "ファイルの取得に失敗しました。",
			RequestID: requestID,
		})
		return
	}
	defer file.Close()

	var rows [][]string
	fileName := strings.ToLower(fileHeader.Filename)

	if strings.HasSuffix(fileName, ".xlsx") {
		f, err := excelize.OpenReader(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "ValidationError",
				Detail:    "Excelファイルの読み込みに失敗しました。",
				RequestID: requestID,
			})
			return
		}
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "ValidationError",
				Detail:    "Excelシートの行取得に失敗しました。",
				RequestID: requestID,
			})
			return
		}
	} else if strings.HasSuffix(fileName, ".csv") {
		r := csv.NewReader(file)
		rows, err = r.ReadAll()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "ValidationError",
				Detail:    "CSVファイルの解析に失敗しました。",
				RequestID: requestID,
			})
			return
		}
	} else {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    "サポートされていないファイル形式です。.xlsxまたは.csvをアップロードしてください。",
			RequestID: requestID,
		})
		return
	}

	if len(rows) < 2 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    "ファイルにはヘッダー行と少なくとも1行のデータが必要です。",
			RequestID: requestID,
		})
		return
	}

	header := rows[0]
	dataRows := rows[1:]
	if len(dataRows) > maxBatchRows {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    fmt.Sprintf("データ行が多すぎます（最大 %d 行）。", maxBatchRows),
			RequestID: requestID,
		})
		return
	}

	// ヘッダーから列インデックスを解決
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	required := []string{
		"user_id", "topic_id", "attempt_count", "correct_attempts",
		"avg_response_time", "self_confidence_rating", "difficulty_feedback",
		"session_duration", "previous_mastery_score", "time_since_last_attempt",
	}
	var missingCols []string
	for _, name := range required {
		if _, ok := colIdx[name]; !ok {
			missingCols = append(missingCols, name)
		}
	}
	if len(missingCols) > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "ValidationError",
			Detail:    fmt.Sprintf("必要な列が見つかりませんでした: %s", strings.Join(missingCols, ", ")),
			RequestID: requestID,
		})
		return
	}

	results := make([]models.BatchRowResult, 0, len(dataRows))
	successCount := 0

	for i, row := range dataRows {
		rowNumber := i + 2 // 1始まり、ヘッダーの次から

		input, parseErr := parseInputRow(row, colIdx)
		if parseErr != nil {
			results = append(results, models.BatchRowResult{Row: rowNumber, Error: parseErr.Error()})
			continue
		}

		if err := input.Validate(); err != nil {
			results = append(results, models.BatchRowResult{
				Row:     rowNumber,
				UserID:  input.UserID,
				TopicID: input.TopicID,
				Error:   err.Error(),
			})
			continue
		}

		result, err := h.inference.RunInference(input)
		if err != nil {
			if errors.Is(err, models.ErrModelsNotLoaded) {
				// モデル未ロードなら残りの行も全て失敗するため打ち切る
				c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
					Error:     "ServiceNotReady",
					Detail:    "Models are not loaded. Please ensure training has been completed.",
					RequestID: requestID,
				})
				return
			}
			log.Printf("Request %s: 行 %d の推論に失敗 - %v", requestID, rowNumber, err)
			results = append(results, models.BatchRowResult{
				Row:     rowNumber,
				UserID:  input.UserID,
				TopicID: input.TopicID,
				Error:   "prediction failed",
			})
			continue
		}

		results = append(results, models.BatchRowResult{
			Row:     rowNumber,
			UserID:  input.UserID,
			TopicID: input.TopicID,
			Prediction: &models.PredictionResponse{
				SkillGap:   result.SkillGap,
				Difficulty: result.Difficulty,
				Ranking:    result.Ranking,
				Adaptation: result.Adaptation,
				RequestID:  requestID,
			},
		})
		successCount++
	}

	c.JSON(http.StatusOK, models.BatchPredictionResponse{
		TotalRows:    len(dataRows),
		SuccessCount: successCount,
		ErrorCount:   len(dataRows) - successCount,
		Results:      results,
		RequestID:    requestID,
	})
}

// parseInputRow は1行分のセルをPredictionInputに変換します。
func parseInputRow(row []string, colIdx map[string]int) (*models.PredictionInput, error) {
	cell := func(name string) string {
		idx := colIdx[name]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	intCell := func(name string) (int, error) {
		v, err := strconv.Atoi(cell(name))
		if err != nil {
			return 0, fmt.Errorf("%s: 整数として解析できません", name)
		}
		return v, nil
	}
	floatCell := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(cell(name), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: 数値として解析できません", name)
		}
		return v, nil
	}

	input := &models.PredictionInput{
		UserID:  cell("user_id"),
		TopicID: cell("topic_id"),
	}

	var err error
	if input.AttemptCount, err = intCell("attempt_count"); err != nil {
		return nil, err
	}
	if input.CorrectAttempts, err = intCell("correct_attempts"); err != nil {
		return nil, err
	}
	if input.AvgResponseTime, err = floatCell("avg_response_time"); err != nil {
		return nil, err
	}
	if input.SelfConfidenceRating, err = floatCell("self_confidence_rating"); err != nil {
		return nil, err
	}
	if input.DifficultyFeedback, err = intCell("difficulty_feedback"); err != nil {
		return nil, err
	}
	if input.SessionDuration, err = floatCell("session_duration"); err != nil {
		return nil, err
	}
	if input.PreviousMasteryScore, err = floatCell("previous_mastery_score"); err != nil {
		return nil, err
	}
	if input.TimeSinceLastAttempt, err = floatCell("time_since_last_attempt"); err != nil {
		return nil, err
	}

	return input, nil
}
