package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"adaptive-intel-api/pkg/models"

	"github.com/stretchr/testify/assert"
)

// writeTestModels はテスト用のモデルファイル一式を dir に書き出します。
// skill_gap は failure_rate（インデックス9）をそのまま返す回帰、
// difficulty は常にクラス2 (hard) を返す分類器、
// ranking は定数 0.42 を返す回帰です。
func writeTestModels(t *testing.T, dir string) (string, string, string) {
	t.Helper()

	skillGap := `{
		"model_type": "linear_regression",
		"intercept": 0.0,
		"coefficients": [0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0]
	}`
	difficulty := `{
		"model_type": "linear_classifier",
		"classes": [0, 1, 2],
		"intercepts": [0.0, 1.0, 2.0],
		"class_weights": [
			[0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0],
			[0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0],
			[0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
		]
	}`
	ranking := `{
		"model_type": "linear_regression",
		"intercept": 0.42,
		"coefficients": [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
	}`

	skillGapPath := filepath.Join(dir, "skill_gap_model.json")
	difficultyPath := filepath.Join(dir, "difficulty_model.json")
	rankingPath := filepath.Join(dir, "ranking_model.json")

	assert.NoError(t, os.WriteFile(skillGapPath, []byte(skillGap), 0o644))
	assert.NoError(t, os.WriteFile(difficultyPath, []byte(difficulty), 0o644))
	assert.NoError(t, os.WriteFile(rankingPath, []byte(ranking), 0o644))

	return skillGapPath, difficultyPath, rankingPath
}

func newTestRegistry(t *testing.T) *ModelRegistryService {
	t.Helper()
	dir := t.TempDir()
	sg, df, rk := writeTestModels(t, dir)
	return NewModelRegistryService(sg, df, rk)
}

func TestRegistryLoad(t *testing.T) {
	registry := newTestRegistry(t)

	// ロード前は未ロード状態で、推論は拒否される
	assert.False(t, registry.IsLoaded())
	_, err := registry.Get(ModelSkillGap)
	assert.ErrorIs(t, err, models.ErrModelsNotLoaded)

	assert.NoError(t, registry.Load())
	assert.True(t, registry.IsLoaded())

	for _, role := range []string{ModelSkillGap, ModelDifficulty, ModelRanking} {
		artifact, err := registry.Get(role)
		assert.NoError(t, err)
		assert.NotNil(t, artifact)
	}
}

func TestRegistryLoadIsIdempotent(t *testing.T) {
	registry := newTestRegistry(t)

	assert.NoError(t, registry.Load())
	// 2回目のロードは何もせず成功する
	assert.NoError(t, registry.Load())
	assert.True(t, registry.IsLoaded())
}

func TestRegistryGetUnknownRole(t *testing.T) {
	registry := newTestRegistry(t)
	assert.NoError(t, registry.Load())

	_, err := registry.Get("sentiment")
	assert.ErrorIs(t, err, models.ErrUnknownModel)
}

func TestRegistryLoadFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	sg, df, _ := writeTestModels(t, dir)

	// ranking のファイルだけ存在しない
	registry := NewModelRegistryService(sg, df, filepath.Join(dir, "missing.json"))

	assert.Error(t, registry.Load())
	// 1つでも失敗したら部分ロード状態を公開しない
	assert.False(t, registry.IsLoaded())
	_, err := registry.Get(ModelSkillGap)
	assert.ErrorIs(t, err, models.ErrModelsNotLoaded)
}

func TestRegistryLoadFailsOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	sg, df, rk := writeTestModels(t, dir)
	assert.NoError(t, os.WriteFile(rk, []byte("not json"), 0o644))

	registry := NewModelRegistryService(sg, df, rk)
	assert.Error(t, registry.Load())
	assert.False(t, registry.IsLoaded())
}

func TestRegistryLoadRejectsWrongDimensions(t *testing.T) {
	dir := t.TempDir()
	sg, df, rk := writeTestModels(t, dir)

	// 係数が14次元でないモデルは拒否される
	bad := `{"model_type": "linear_regression", "intercept": 0.0, "coefficients": [1, 2, 3]}`
	assert.NoError(t, os.WriteFile(sg, []byte(bad), 0o644))

	registry := NewModelRegistryService(sg, df, rk)
	assert.Error(t, registry.Load())
	assert.False(t, registry.IsLoaded())
}

func TestRegistryReloadAfterFailureLeavesUnloaded(t *testing.T) {
	dir := t.TempDir()
	sg, df, rk := writeTestModels(t, dir)
	registry := NewModelRegistryService(sg, df, rk)
	assert.NoError(t, registry.Load())

	// ファイルを壊してリロードすると未ロード状態になる
	assert.NoError(t, os.WriteFile(df, []byte("{broken"), 0o644))
	assert.Error(t, registry.Reload())
	assert.False(t, registry.IsLoaded())
	_, err := registry.Get(ModelDifficulty)
	assert.ErrorIs(t, err, models.ErrModelsNotLoaded)
}

func TestRegistryReloadPicksUpNewArtifacts(t *testing.T) {
	dir := t.TempDir()
	sg, df, rk := writeTestModels(t, dir)
	registry := NewModelRegistryService(sg, df, rk)
	assert.NoError(t, registry.Load())

	// ranking モデルを差し替えてリロード
	updated := `{"model_type": "linear_regression", "intercept": 0.99, "coefficients": [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]}`
	assert.NoError(t, os.WriteFile(rk, []byte(updated), 0o644))
	assert.NoError(t, registry.Reload())

	artifact, err := registry.Get(ModelRanking)
	assert.NoError(t, err)
	vector := make([]float64, FeatureVectorSize)
	assert.InDelta(t, 0.99, artifact.Predict(vector), 1e-9)
}

func TestRegistryConcurrentReadsDuringReload(t *testing.T) {
	registry := newTestRegistry(t)
	assert.NoError(t, registry.Load())

	vector := make([]float64, FeatureVectorSize)
	var wg sync.WaitGroup

	// 読み取りとリロードを並行実行してもレース・部分状態が観測されないこと
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				artifact, err := registry.Get(ModelRanking)
				if assert.NoError(t, err) {
					artifact.Predict(vector)
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, registry.Reload())
			}
		}()
	}

	wg.Wait()
	assert.True(t, registry.IsLoaded())
}
