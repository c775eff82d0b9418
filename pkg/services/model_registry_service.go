package services

import (
	"fmt"
	"log"
	"os"
	"sync"

	"adaptive-intel-api/pkg/models"
)

// モデルレジストリが保持する3つのロール名。
const (
	ModelSkillGap   = "skill_gap"
	ModelDifficulty = "difficulty"
	ModelRanking    = "ranking"
)

// ModelRegistryService は学習済みモデルをメモリ上に保持するレジストリです。
// 読み取りが支配的なため RWMutex を使い、リロードはアーティファクトセット全体の
// 差し替えとして行います。読み手は古いセットへの参照を持ったまま処理を
// 完了できます（セットはロード後に変更されません）。
type ModelRegistryService struct {
	mu        sync.RWMutex
	artifacts map[string]PredictionArtifact
	loaded    bool
	paths     map[string]string
}

// NewModelRegistryService 新しいモデルレジストリを作成
func NewModelRegistryService(skillGapPath, difficultyPath, rankingPath string) *ModelRegistryService {
	return &ModelRegistryService{
		paths: map[string]string{
			ModelSkillGap:   skillGapPath,
			ModelDifficulty: difficultyPath,
			ModelRanking:    rankingPath,
		},
	}
}

// Load は3つのモデルをすべてディスクから読み込みます。
// すでにロード済みの場合は何もせず成功を返します（冪等）。
func (s *ModelRegistryService) Load() error {
	s.mu.RLock()
	alreadyLoaded := s.loaded
	s.mu.RUnlock()
	if alreadyLoaded {
		log.Println("モデルはロード済みのためスキップします")
		return nil
	}
	return s.loadAndSwap()
}

// Reload は現在の状態に関わらず全モデルを強制的に再読み込みします。
// 失敗した場合、レジストリは未ロード状態になります（部分ロード状態は公開しない）。
func (s *ModelRegistryService) Reload() error {
	if err := s.loadAndSwap(); err != nil {
		s.mu.Lock()
		s.artifacts = nil
		s.loaded = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// loadAndSwap は全アーティファクトを新しいセットに読み込み、
// 成功した場合のみ一括で差し替えます。
func (s *ModelRegistryService) loadAndSwap() error {
	fresh := make(map[string]PredictionArtifact, len(s.paths))

	for role, path := range s.paths {
		artifact, err := loadArtifactFile(path)
		if err != nil {
			return fmt.Errorf("モデル '%s' のロードに失敗: %w", role, err)
		}
		fresh[role] = artifact
		log.Printf("モデル '%s' をロードしました: %s", role, path)
	}

	s.mu.Lock()
	s.artifacts = fresh
	s.loaded = true
	s.mu.Unlock()

	log.Println("全モデルのロードが完了しました")
	return nil
}

// loadArtifactFile は単一のモデルファイルを読み込んで復元します。
func loadArtifactFile(path string) (PredictionArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("モデルファイルを読み込めません: %w", err)
	}
	return unmarshalArtifact(data)
}

// Get は指定ロールのアーティファクトを返します。
// レジストリが空なら ErrModelsNotLoaded、ロール名が未知なら ErrUnknownModel を返します。
func (s *ModelRegistryService) Get(role string) (PredictionArtifact, error) {
	if _, known := s.paths[role]; !known {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownModel, role)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, models.ErrModelsNotLoaded
	}
	return s.artifacts[role], nil
}

// IsLoaded は3ロールすべてがロード済みかどうかを返します。
func (s *ModelRegistryService) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
