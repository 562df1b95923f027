package model

// CaseStatus 病例流水线阶段
type CaseStatus string

const (
	CaseStatusNew                 CaseStatus = "NEW"
	CaseStatusR1AckProcessing     CaseStatus = "R1_ACK_PROCESSING"
	CaseStatusExtracting          CaseStatus = "EXTRACTING"
	CaseStatusLLMStruct           CaseStatus = "LLM_STRUCT"
	CaseStatusLLMSuggest          CaseStatus = "LLM_SUGGEST"
	CaseStatusR2PostWidget        CaseStatus = "R2_POST_WIDGET"
	CaseStatusWaitDoctor          CaseStatus = "WAIT_DOCTOR"
	CaseStatusDoctorDenied        CaseStatus = "DOCTOR_DENIED"
	CaseStatusDoctorAccepted      CaseStatus = "DOCTOR_ACCEPTED"
	CaseStatusR3PostRequest       CaseStatus = "R3_POST_REQUEST"
	CaseStatusWaitAppt            CaseStatus = "WAIT_APPT"
	CaseStatusApptConfirmed       CaseStatus = "APPT_CONFIRMED"
	CaseStatusApptDenied          CaseStatus = "APPT_DENIED"
	CaseStatusFailed              CaseStatus = "FAILED"
	CaseStatusR1FinalReplyPosted  CaseStatus = "R1_FINAL_REPLY_POSTED"
	CaseStatusWaitR1CleanupThumbs CaseStatus = "WAIT_R1_CLEANUP_THUMBS"
	CaseStatusCleanupRunning      CaseStatus = "CLEANUP_RUNNING"
	CaseStatusCleaned             CaseStatus = "CLEANED"
)

var allCaseStatuses = []CaseStatus{
	CaseStatusNew,
	CaseStatusR1AckProcessing,
	CaseStatusExtracting,
	CaseStatusLLMStruct,
	CaseStatusLLMSuggest,
	CaseStatusR2PostWidget,
	CaseStatusWaitDoctor,
	CaseStatusDoctorDenied,
	CaseStatusDoctorAccepted,
	CaseStatusR3PostRequest,
	CaseStatusWaitAppt,
	CaseStatusApptConfirmed,
	CaseStatusApptDenied,
	CaseStatusFailed,
	CaseStatusR1FinalReplyPosted,
	CaseStatusWaitR1CleanupThumbs,
	CaseStatusCleanupRunning,
	CaseStatusCleaned,
}

// AllCaseStatuses 按流水线顺序返回全部状态
func AllCaseStatuses() []CaseStatus {
	out := make([]CaseStatus, len(allCaseStatuses))
	copy(out, allCaseStatuses)
	return out
}

func (s CaseStatus) Valid() bool {
	for _, v := range allCaseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// InCleanupStage 是否已进入收尾阶段（最终回复之后）
func (s CaseStatus) InCleanupStage() bool {
	switch s {
	case CaseStatusR1FinalReplyPosted, CaseStatusWaitR1CleanupThumbs, CaseStatusCleanupRunning, CaseStatusCleaned:
		return true
	default:
		return false
	}
}
