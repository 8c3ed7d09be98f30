package dto

import (
	"time"

	"lifeline-plus/internal/domain/entity"
)

// Response DTOs

type AuditLogResponse struct {
	ID        int64                `json:"id"`
	User      *UserResponse        `json:"user,omitempty"`
	Action    string               `json:"action"`
	Metadata  entity.AuditMetadata `json:"metadata"`
	CreatedAt time.Time            `json:"created_at"`
}

type AuditLogListResponse struct {
	Logs  []AuditLogResponse `json:"logs"`
	Total int                `json:"total"`
}
