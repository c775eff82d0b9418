package services

import (
	config "adaptive-intel-api/configs"
	"adaptive-intel-api/pkg/models"
)

// DetermineAdaptationAction は予測結果から次の学習アクションを決定します。
// 優先順位付きルールで、最初に一致したものが採用されます。
//
//	1. gap_score > しきい値       → add_foundation_resources
//	2. hard かつ failure > しきい値 → reduce_difficulty
//	3. accuracy > しきい値        → increase_difficulty
//	4. それ以外                   → continue_current_path
func DetermineAdaptationAction(gapScore float64, difficultyLevel string, accuracyRate, failureRate float64, t config.Thresholds) string {
	// ルール1: ギャップが大きい場合は基礎の補強が最優先
	if gapScore > t.AdaptationGapHigh {
		return models.ActionAddFoundationResources
	}

	// ルール2: 難しい内容で失敗が続いている場合は難易度を下げる
	if difficultyLevel == "hard" && failureRate > t.AdaptationFailure {
		return models.ActionReduceDifficulty
	}

	// ルール3: 高い正答率はより高い難易度への準備ができている
	if accuracyRate > t.AdaptationAccuracy {
		return models.ActionIncreaseDifficulty
	}

	return models.ActionContinueCurrentPath
}
