package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/caseflow/internal/cleanup"
	"github.com/azhengyongqin/caseflow/internal/middleware"
	"github.com/azhengyongqin/caseflow/internal/server/dto"
)

// SignalHandler 外部信号 API Handler
type SignalHandler struct {
	signals *cleanup.SignalHandler
}

// NewSignalHandler 创建 SignalHandler
func NewSignalHandler(signals *cleanup.SignalHandler) *SignalHandler {
	return &SignalHandler{signals: signals}
}

// PostSignal godoc
// @Summary 提交外部确认信号
// @Description 对信号分类；主频道最终回复上的 👍 首次到达时触发清理。未处理的信号同样返回 200，并给出原因
// @Tags Signals
// @Accept json
// @Produce json
// @Param request body dto.SignalRequest true "信号"
// @Success 200 {object} cleanup.Result
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /signals [post]
func (h *SignalHandler) PostSignal(c *gin.Context) {
	var req dto.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !middleware.ValidateActor(req.Actor) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "actor 格式无效"})
		return
	}

	res, err := h.signals.OnExternalSignal(c.Request.Context(), cleanup.Signal{
		Room:      req.Room,
		TargetRef: req.TargetRef,
		Key:       req.Key,
		Actor:     req.Actor,
		EventRef:  req.EventRef,
		CaseID:    req.CaseID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
