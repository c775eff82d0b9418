package services

import (
	"adaptive-intel-api/pkg/models"
)

// FeatureVectorSize は特徴ベクトルの固定長です（生8 + 派生6）。
// この並び順は学習済みモデルおよびオフラインのラベル生成と共有する契約であり、
// 変更するとバージョン更新なしに既存モデルが無効になります。
const FeatureVectorSize = 14

// FeatureService は特徴量エンジニアリングサービスです。
// すべての演算は決定的で、乱数・外部状態・I/Oを一切持ちません。
type FeatureService struct{}

// NewFeatureService 新しい特徴量エンジニアリングサービスを作成
func NewFeatureService() *FeatureService {
	return &FeatureService{}
}

// ComputeDerivedFeatures は生の入力から6つの派生特徴量を計算します。
func (s *FeatureService) ComputeDerivedFeatures(input *models.PredictionInput) models.DerivedFeatures {
	// ゼロ除算ガード: 試行回数0なら正答率0
	accuracyRate := 0.0
	if input.AttemptCount > 0 {
		accuracyRate = float64(input.CorrectAttempts) / float64(input.AttemptCount)
	}
	failureRate := 1.0 - accuracyRate

	// 学習速度: 投下時間に対する習熟度の進み
	learningVelocity := 0.0
	if input.SessionDuration > 0 {
		learningVelocity = input.PreviousMasteryScore / input.SessionDuration
	}

	// 自己評価と実際のパフォーマンスの乖離
	confidencePerformanceGap := input.SelfConfidenceRating - accuracyRate

	// 体感難易度と実際の失敗を組み合わせたストレス指標
	difficultyStressIndex := float64(input.DifficultyFeedback) * failureRate

	// 粘り強さの指標
	persistenceScore := input.SessionDuration / float64(input.AttemptCount+1)

	return models.DerivedFeatures{
		AccuracyRate:             accuracyRate,
		FailureRate:              failureRate,
		LearningVelocity:         learningVelocity,
		ConfidencePerformanceGap: confidencePerformanceGap,
		DifficultyStressIndex:    difficultyStressIndex,
		PersistenceScore:         persistenceScore,
	}
}

// PrepareFeatureVector はモデル入力用の14次元特徴ベクトルを固定順で構築します。
// 順序: 生の数値属性8つ → 派生特徴量6つ。
func (s *FeatureService) PrepareFeatureVector(input *models.PredictionInput) ([]float64, models.DerivedFeatures) {
	derived := s.ComputeDerivedFeatures(input)

	vector := []float64{
		float64(input.AttemptCount),
		float64(input.CorrectAttempts),
		input.AvgResponseTime,
		input.SelfConfidenceRating,
		float64(input.DifficultyFeedback),
		input.SessionDuration,
		input.PreviousMasteryScore,
		input.TimeSinceLastAttempt,
		derived.AccuracyRate,
		derived.FailureRate,
		derived.LearningVelocity,
		derived.ConfidencePerformanceGap,
		derived.DifficultyStressIndex,
		derived.PersistenceScore,
	}

	return vector, derived
}

// FeatureNames は特徴ベクトルと同じ順序の特徴量名リストを返します。
func (s *FeatureService) FeatureNames() []string {
	return []string{
		"attempt_count",
		"correct_attempts",
		"avg_response_time",
		"self_confidence_rating",
		"difficulty_feedback",
		"session_duration",
		"previous_mastery_score",
		"time_since_last_attempt",
		"accuracy_rate",
		"failure_rate",
		"learning_velocity",
		"confidence_performance_gap",
		"difficulty_stress_index",
		"persistence_score",
	}
}
