package dto

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error" example:"错误信息"`
}

// ListResponse 通用列表响应
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total" example:"1"`
}
