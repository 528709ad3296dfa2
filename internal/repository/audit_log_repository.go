package repository

import (
	"context"

	"shop/internal/domain/model"
)

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	// 対象ごとの履歴（新しい順）
	ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID int64, limit int) ([]model.AuditLog, error)
}
