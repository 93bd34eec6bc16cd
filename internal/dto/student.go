package dto

// ChangeClassRequest moves a student into another class from now on.
type ChangeClassRequest struct {
	ClassID string `json:"classId" validate:"required"`
}
