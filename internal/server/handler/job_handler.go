package handler

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/middleware"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/server/dto"
)

// JobHandler 作业相关 API Handler
type JobHandler struct {
	jobs     repository.JobStore
	queue    *queue.Client
	jobTypes []string // 允许入队的作业类型，为空时不限制
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(jobs repository.JobStore, q *queue.Client, jobTypes []string) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		queue:    q,
		jobTypes: jobTypes,
	}
}

// CreateJob godoc
// @Summary 作业入队
// @Description 新建 queued 作业；unique=true 时同一病例同一类型已有活跃作业则不入队
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body dto.CreateJobRequest true "入队请求"
// @Success 201 {object} dto.CreateJobResponse
// @Success 200 {object} dto.CreateJobResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if !middleware.ValidateJobType(req.JobType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "job_type 格式无效"})
		return
	}
	if len(h.jobTypes) > 0 && !slices.Contains(h.jobTypes, req.JobType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "未注册的 job_type: " + req.JobType})
		return
	}
	if req.MaxAttempts < 0 || req.DelaySeconds < 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "max_attempts 与 delay_seconds 不能为负数"})
		return
	}
	if req.Unique && req.CaseID == nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unique 入队需要 case_id"})
		return
	}

	p := queue.EnqueueParams{
		JobType:     req.JobType,
		CaseID:      req.CaseID,
		Payload:     req.Payload,
		MaxAttempts: req.MaxAttempts,
		Delay:       time.Duration(req.DelaySeconds) * time.Second,
		Unique:      req.Unique,
	}
	if req.RunAt != nil {
		p.RunAt = *req.RunAt
	}

	job, enqueued, err := h.queue.Enqueue(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !enqueued {
		c.JSON(http.StatusOK, dto.CreateJobResponse{Enqueued: false})
		return
	}
	c.JSON(http.StatusCreated, dto.CreateJobResponse{Enqueued: true, Job: job})
}

// ListJobs godoc
// @Summary 查询作业列表
// @Description 分页查询作业，按 id 倒序
// @Tags Jobs
// @Produce json
// @Param status query string false "作业状态"
// @Param job_type query string false "作业类型"
// @Param case_id query string false "病例 ID"
// @Param limit query int false "每页数量" default(50)
// @Param offset query int false "偏移量" default(0)
// @Success 200 {object} dto.ListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	f := repository.ListJobsFilter{
		Status:  c.Query("status"),
		JobType: c.Query("job_type"),
	}
	if f.Status != "" && !model.JobStatus(f.Status).Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status 无效: " + f.Status})
		return
	}
	if raw := c.Query("case_id"); raw != "" {
		caseID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "case_id 格式无效"})
			return
		}
		f.CaseID = &caseID
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.jobs.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: items, Total: len(items)})
}

// GetJob godoc
// @Summary 获取作业详情
// @Tags Jobs
// @Produce json
// @Param job_id path int true "作业 ID"
// @Success 200 {object} repository.Job
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /jobs/{job_id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.GetInt64(middleware.JobIDKey)

	job, err := h.jobs.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "作业不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetStats godoc
// @Summary 作业状态统计
// @Description 按状态统计作业数量
// @Tags Jobs
// @Produce json
// @Success 200 {object} dto.JobStatsResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /jobs/stats [get]
func (h *JobHandler) GetStats(c *gin.Context) {
	counts, err := h.jobs.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp := dto.JobStatsResponse{Counts: make(map[string]int, len(counts))}
	for _, st := range model.AllJobStatuses() {
		n := counts[st]
		resp.Counts[string(st)] = n
		resp.Total += n
	}
	c.JSON(http.StatusOK, resp)
}
