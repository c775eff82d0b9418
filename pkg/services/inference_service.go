package services

import (
	"log"
	"math"
	"time"

	config "adaptive-intel-api/configs"
	"adaptive-intel-api/pkg/models"
)

// difficultyLabels はクラスインデックスと難易度ラベルの対応です。
var difficultyLabels = map[int]string{
	0: "easy",
	1: "medium",
	2: "hard",
}

// InferenceService は推論パイプライン全体を統括するサービスです。
// 特徴量計算 → 3モデルの予測 → 適応アクション決定を1リクエスト分として実行します。
type InferenceService struct {
	features   *FeatureService
	registry   *ModelRegistryService
	metrics    *MetricsService
	thresholds config.Thresholds
}

// NewInferenceService 新しい推論サービスを作成
func NewInferenceService(features *FeatureService, registry *ModelRegistryService, metrics *MetricsService, thresholds config.Thresholds) *InferenceService {
	return &InferenceService{
		features:   features,
		registry:   registry,
		metrics:    metrics,
		thresholds: thresholds,
	}
}

// InferenceResult は1回の推論パイプラインの統合結果です。
type InferenceResult struct {
	SkillGap   models.SkillGapOutput
	Difficulty models.DifficultyOutput
	Ranking    models.RankingOutput
	Adaptation models.AdaptationOutput
}

// RunInference は検証済み入力に対して推論パイプラインを実行します。
// レジストリが未ロードの場合は特徴量計算に入らず即座に失敗します。
// 成否に関わらず、1回の呼び出しにつき1件の予測レイテンシを記録します。
func (s *InferenceService) RunInference(input *models.PredictionInput) (*InferenceResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordPrediction(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if !s.registry.IsLoaded() {
		return nil, models.ErrModelsNotLoaded
	}

	// ステップ1: 特徴量エンジニアリング
	vector, derived := s.features.PrepareFeatureVector(input)

	// ステップ2: スキルギャップ推定（回帰）
	skillGapModel, err := s.registry.Get(ModelSkillGap)
	if err != nil {
		return nil, err
	}
	gapScore := clamp01(skillGapModel.Predict(vector))
	weak := gapScore > s.thresholds.SkillGapWeak

	// ステップ3: 難易度分類
	difficultyModel, err := s.registry.Get(ModelDifficulty)
	if err != nil {
		return nil, err
	}
	difficultyClass := int(difficultyModel.Predict(vector))
	difficultyLevel, known := difficultyLabels[difficultyClass]
	if !known {
		// ラベル空間の不一致を黙殺しない。レスポンスは medium で安定させる。
		log.Printf("警告: 難易度モデルが未知のクラス %d を返しました。medium にフォールバックします", difficultyClass)
		difficultyLevel = "medium"
	}

	// ステップ4: ランキングスコア（回帰）
	rankingModel, err := s.registry.Get(ModelRanking)
	if err != nil {
		return nil, err
	}
	rankingScore := clamp01(rankingModel.Predict(vector))

	// ステップ5: 適応アクション決定
	action := DetermineAdaptationAction(gapScore, difficultyLevel, derived.AccuracyRate, derived.FailureRate, s.thresholds)

	return &InferenceResult{
		SkillGap: models.SkillGapOutput{
			GapScore: round4(gapScore),
			Weak:     weak,
		},
		Difficulty: models.DifficultyOutput{
			DifficultyLevel: difficultyLevel,
		},
		Ranking: models.RankingOutput{
			RankingScore: round4(rankingScore),
		},
		Adaptation: models.AdaptationOutput{
			Action: action,
		},
	}, nil
}

// clamp01 は値を [0,1] に収めます。
func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

// round4 は小数第4位に丸めます。
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
