package services

import (
	"encoding/json"
	"fmt"
)

// PredictionArtifact は学習済みモデルを「ベクトル入力・スカラー出力」の
// 不透明な関数として扱うインターフェースです。ロード後は不変です。
type PredictionArtifact interface {
	// Predict は14次元の特徴ベクトルからスカラー予測値を返します。
	// 回帰モデルは連続値、分類モデルはクラスインデックスを返します。
	Predict(vector []float64) float64
}

// artifactFile はモデルファイル（JSON）の共通エンベロープです。
type artifactFile struct {
	ModelType    string      `json:"model_type"`
	Intercept    float64     `json:"intercept"`
	Coefficients []float64   `json:"coefficients"`
	Classes      []int       `json:"classes"`
	Intercepts   []float64   `json:"intercepts"`
	ClassWeights [][]float64 `json:"class_weights"`
}

// linearRegressionArtifact は係数と切片による線形回帰モデルです。
type linearRegressionArtifact struct {
	intercept    float64
	coefficients []float64
}

func (a *linearRegressionArtifact) Predict(vector []float64) float64 {
	score := a.intercept
	for i, c := range a.coefficients {
		score += c * vector[i]
	}
	return score
}

// linearClassifierArtifact はクラスごとのスコア行を持つ線形分類器です。
// 最大スコアのクラスインデックスを返します。
type linearClassifierArtifact struct {
	classes      []int
	intercepts   []float64
	classWeights [][]float64
}

func (a *linearClassifierArtifact) Predict(vector []float64) float64 {
	bestClass := a.classes[0]
	bestScore := 0.0
	for ci, weights := range a.classWeights {
		score := a.intercepts[ci]
		for i, w := range weights {
			score += w * vector[i]
		}
		if ci == 0 || score > bestScore {
			bestScore = score
			bestClass = a.classes[ci]
		}
	}
	return float64(bestClass)
}

// unmarshalArtifact はモデルファイルのバイト列からアーティファクトを復元します。
// 係数の次元が特徴ベクトル長と一致しないファイルはロード時に拒否します。
func unmarshalArtifact(data []byte) (PredictionArtifact, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("モデルファイルの解析に失敗: %w", err)
	}

	switch file.ModelType {
	case "linear_regression":
		if len(file.Coefficients) != FeatureVectorSize {
			return nil, fmt.Errorf("係数の次元が不正です: expected %d, got %d", FeatureVectorSize, len(file.Coefficients))
		}
		return &linearRegressionArtifact{
			intercept:    file.Intercept,
			coefficients: file.Coefficients,
		}, nil

	case "linear_classifier":
		if len(file.Classes) == 0 {
			return nil, fmt.Errorf("分類モデルにクラス定義がありません")
		}
		if len(file.ClassWeights) != len(file.Classes) || len(file.Intercepts) != len(file.Classes) {
			return nil, fmt.Errorf("クラス数と重み行列の行数が一致しません")
		}
		for _, row := range file.ClassWeights {
			if len(row) != FeatureVectorSize {
				return nil, fmt.Errorf("重みの次元が不正です: expected %d, got %d", FeatureVectorSize, len(row))
			}
		}
		return &linearClassifierArtifact{
			classes:      file.Classes,
			intercepts:   file.Intercepts,
			classWeights: file.ClassWeights,
		}, nil

	default:
		return nil, fmt.Errorf("未対応のモデル種別: %q", file.ModelType)
	}
}
