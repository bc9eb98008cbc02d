package dto

type CreateTaskRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}
