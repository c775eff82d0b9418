package models

// PredictionInput は学習者とトピックの組に対する予測リクエストです。
// 数値フィールドの範囲制約は Validate() で一括検証されます。
type PredictionInput struct {
	UserID               string  `json:"user_id" binding:"required"`
	TopicID              string  `json:"topic_id" binding:"required"`
	AttemptCount         int     `json:"attempt_count"`
	CorrectAttempts      int     `json:"correct_attempts"`
	AvgResponseTime      float64 `json:"avg_response_time"`      // 平均回答時間（秒）
	SelfConfidenceRating float64 `json:"self_confidence_rating"` // 自己評価 (0-1)
	DifficultyFeedback   int     `json:"difficulty_feedback"`    // 体感難易度 (1-5)
	SessionDuration      float64 `json:"session_duration"`       // セッション時間（分）
	PreviousMasteryScore float64 `json:"previous_mastery_score"` // 前回の習熟度 (0-1)
	TimeSinceLastAttempt float64 `json:"time_since_last_attempt"` // 前回挑戦からの経過時間（時間）
}

// Validate はすべてのフィールド制約を1パスで検証し、違反を列挙して返します。
// 違反が無ければ nil を返します。
func (p *PredictionInput) Validate() error {
	var violations []string

	if p.UserID == "" {
		violations = append(violations, "user_id is required")
	}
	if p.TopicID == "" {
		violations = append(violations, "topic_id is required")
	}
	if p.AttemptCount < 1 {
		violations = append(violations, "attempt_count must be >= 1")
	}
	if p.CorrectAttempts < 0 {
		violations = append(violations, "correct_attempts must be >= 0")
	}
	if p.CorrectAttempts > p.AttemptCount {
		violations = append(violations, "correct_attempts cannot exceed attempt_count")
	}
	if p.AvgResponseTime < 0 {
		violations = append(violations, "avg_response_time must be >= 0")
	}
	if p.SelfConfidenceRating < 0 || p.SelfConfidenceRating > 1 {
		violations = append(violations, "self_confidence_rating must be between 0 and 1")
	}
	if p.DifficultyFeedback < 1 || p.DifficultyFeedback > 5 {
		violations = append(violations, "difficulty_feedback must be between 1 and 5")
	}
	if p.SessionDuration <= 0 {
		violations = append(violations, "session_duration must be > 0")
	}
	if p.PreviousMasteryScore < 0 || p.PreviousMasteryScore > 1 {
		violations = append(violations, "previous_mastery_score must be between 0 and 1")
	}
	if p.TimeSinceLastAttempt < 0 {
		violations = append(violations, "time_since_last_attempt must be >= 0")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// DerivedFeatures は生の入力から決定的に計算される派生特徴量です。
type DerivedFeatures struct {
	AccuracyRate             float64 `json:"accuracy_rate"`
	FailureRate              float64 `json:"failure_rate"`
	LearningVelocity         float64 `json:"learning_velocity"`
	ConfidencePerformanceGap float64 `json:"confidence_performance_gap"`
	DifficultyStressIndex    float64 `json:"difficulty_stress_index"`
	PersistenceScore         float64 `json:"persistence_score"`
}

// SkillGapOutput スキルギャップ推定の出力
type SkillGapOutput struct {
	GapScore float64 `json:"gap_score"` // [0,1] にクランプ済み、小数4桁
	Weak     bool    `json:"weak"`      // gap_score > weakしきい値
}

// DifficultyOutput 難易度分類の出力
type DifficultyOutput struct {
	DifficultyLevel string `json:"difficulty_level"` // "easy" | "medium" | "hard"
}

// RankingOutput 推薦ランキングの出力
type RankingOutput struct {
	RankingScore float64 `json:"ranking_score"` // [0,1] にクランプ済み、小数4桁
}

// AdaptationOutput 適応アクションの出力
type AdaptationOutput struct {
	Action string `json:"action"`
}

// 適応アクションの閉じた列挙
const (
	ActionAddFoundationResources = "add_foundation_resources"
	ActionReduceDifficulty       = "reduce_difficulty"
	ActionIncreaseDifficulty     = "increase_difficulty"
	ActionContinueCurrentPath    = "continue_current_path"
)

// PredictionResponse は全予測器の結果を束ねた統合レスポンスです。
type PredictionResponse struct {
	SkillGap         SkillGapOutput   `json:"skill_gap"`
	Difficulty       DifficultyOutput `json:"difficulty"`
	Ranking          RankingOutput    `json:"ranking"`
	Adaptation       AdaptationOutput `json:"adaptation"`
	RequestID        string           `json:"request_id"`
	PredictionTimeMs float64          `json:"prediction_time_ms"`
}

// HealthResponse ヘルスチェックのレスポンス
type HealthResponse struct {
	Status       string `json:"status"`
	ModelsLoaded bool   `json:"models_loaded"`
	Version      string `json:"version"`
}

// ErrorResponse エラーレスポンスの共通フォーマット
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// BatchRowResult はバッチ予測の1行分の結果です。
type BatchRowResult struct {
	Row        int                 `json:"row"`
	UserID     string              `json:"user_id,omitempty"`
	TopicID    string              `json:"topic_id,omitempty"`
	Prediction *PredictionResponse `json:"prediction,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// BatchPredictionResponse はバッチ予測全体のレスポンスです。
type BatchPredictionResponse struct {
	TotalRows    int              `json:"total_rows"`
	SuccessCount int              `json:"success_count"`
	ErrorCount   int              `json:"error_count"`
	Results      []BatchRowResult `json:"results"`
	RequestID    string           `json:"request_id"`
}
