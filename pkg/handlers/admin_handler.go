package handlers

import (
	"log"
	"net/http"

	config "adaptive-intel-api/configs"
	"adaptive-intel-api/pkg/models"
	"adaptive-intel-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler はヘルスチェックと管理者向け操作のハンドラです。
type AdminHandler struct {
	registry *services.ModelRegistryService
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(registry *services.ModelRegistryService) *AdminHandler {
	return &AdminHandler{
		registry: registry,
	}
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
// モデル未ロードでもプロセスが生きている限り応答します。認証は不要です。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:       "healthy",
		ModelsLoaded: h.registry.IsLoaded(),
		Version:      config.APIVersion,
	})
}

// ReloadModels は全モデルをディスクから強制的に再読み込みします。
// 管理者向けで、公開ドキュメントには載せません。
func (h *AdminHandler) ReloadModels(c *gin.Context) {
	log.Println("全モデルを再読み込みします...")

	status := "healthy"
	if err := h.registry.Reload(); err != nil {
		log.Printf("モデルの再読み込みに失敗: %v", err)
		status = "degraded"
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:       status,
		ModelsLoaded: h.registry.IsLoaded(),
		Version:      config.APIVersion,
	})
}
