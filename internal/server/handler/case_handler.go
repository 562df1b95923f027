package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/middleware"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/server/dto"
)

// CaseHandler 病例相关 API Handler
type CaseHandler struct {
	cases        repository.CaseStore
	events       repository.AuditStore
	recorder     *audit.Recorder
	transitioner *casestate.Transitioner
}

// NewCaseHandler 创建 CaseHandler
func NewCaseHandler(cases repository.CaseStore, events repository.AuditStore, recorder *audit.Recorder) *CaseHandler {
	return &CaseHandler{
		cases:        cases,
		events:       events,
		recorder:     recorder,
		transitioner: casestate.NewTransitioner(cases),
	}
}

// CreateCase godoc
// @Summary 创建病例
// @Description 创建病例，初始状态默认为 NEW
// @Tags Cases
// @Accept json
// @Produce json
// @Param request body dto.CreateCaseRequest true "病例创建请求"
// @Success 201 {object} repository.Case
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cases [post]
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	status := model.CaseStatus(req.Status)
	if status == "" {
		status = model.CaseStatusNew
	}
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status 无效: " + req.Status})
		return
	}

	in := repository.CreateCaseInput{
		Status:    status,
		OriginRef: middleware.SanitizeString(req.OriginRef),
	}
	if req.CaseID != nil {
		in.CaseID = *req.CaseID
	}

	created, err := h.cases.Create(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	h.recorder.System(c.Request.Context(), created.CaseID, audit.EventCaseCreated, map[string]any{
		"status":     created.Status,
		"origin_ref": created.OriginRef,
		"request_id": middleware.GetRequestID(c),
	})

	c.JSON(http.StatusCreated, created)
}

// GetCase godoc
// @Summary 获取病例
// @Tags Cases
// @Produce json
// @Param case_id path string true "病例 ID"
// @Success 200 {object} repository.Case
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /cases/{case_id} [get]
func (h *CaseHandler) GetCase(c *gin.Context) {
	caseID := c.MustGet(middleware.CaseIDKey).(uuid.UUID)

	found, err := h.cases.Get(c.Request.Context(), caseID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "病例不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, found)
}

// ListEvents godoc
// @Summary 查询病例审计事件
// @Description 按时间顺序返回病例的审计事件
// @Tags Cases
// @Produce json
// @Param case_id path string true "病例 ID"
// @Param limit query int false "数量上限" default(50)
// @Success 200 {object} dto.ListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cases/{case_id}/events [get]
func (h *CaseHandler) ListEvents(c *gin.Context) {
	caseID := c.MustGet(middleware.CaseIDKey).(uuid.UUID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.events.ListByCase(c.Request.Context(), caseID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: items, Total: len(items)})
}

// Transition godoc
// @Summary 病例状态迁移
// @Description 经迁移校验后修改病例状态；非法迁移返回 409
// @Tags Cases
// @Accept json
// @Produce json
// @Param case_id path string true "病例 ID"
// @Param request body dto.TransitionRequest true "目标状态"
// @Success 200 {object} dto.TransitionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /cases/{case_id}/transition [post]
func (h *CaseHandler) Transition(c *gin.Context) {
	caseID := c.MustGet(middleware.CaseIDKey).(uuid.UUID)

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	to := model.CaseStatus(req.To)
	if !to.Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "to 无效: " + req.To})
		return
	}

	from, err := h.transitioner.Transition(c.Request.Context(), caseID, to)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "病例不存在"})
		return
	case errors.Is(err, casestate.ErrIllegalTransition), errors.Is(err, casestate.ErrStaleStatus):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	entry := audit.Entry{
		CaseID:    caseID,
		ActorType: repository.ActorSystem,
		EventType: audit.EventCaseTransition,
		Payload:   map[string]any{"from_status": from, "to_status": to},
	}
	if actor := middleware.SanitizeString(req.Actor); actor != "" {
		entry.ActorType = repository.ActorHuman
		entry.ActorRef = actor
	}
	_ = h.recorder.Record(c.Request.Context(), entry)

	c.JSON(http.StatusOK, dto.TransitionResponse{CaseID: caseID, From: from, To: to})
}
