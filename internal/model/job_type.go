package model

// 内置作业类型
const (
	JobTypePostRoom1FinalFailure  = "post_room1_final_failure"
	JobTypePostRoom1FinalDenied   = "post_room1_final_denied"
	JobTypePostRoom1FinalAccepted = "post_room1_final_accepted"
	JobTypePostRoom3Request       = "post_room3_request"
	JobTypeExecuteCleanup         = "execute_cleanup"
)
