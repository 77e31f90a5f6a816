// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/CineWeaverMCP/internal/utils"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 浏览器前端与后端可能不同源（CORS_ORIGINS场景）
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressWebSocket 订阅指定任务的生成进度并推送到客户端
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")

	tracker, exists := h.Progress.GetTracker(taskID)
	if !exists {
		h.Response.Error(c, http.StatusNotFound, "Unknown task id.", ErrCodeNotFound)
		return
	}

	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Error("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 客户端断开时结束推送
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Completed || update.Failed {
				return
			}
		case <-tracker.Done():
			// 排空缓冲中的最终状态
			for update := range updates {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if conn.WriteJSON(update) != nil {
					return
				}
			}
			return
		case <-done:
			return
		}
	}
}
