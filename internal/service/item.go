package service

import (
	"context"
	"strings"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/repository"
)

type itemService struct {
	uow      repository.UnitOfWork
	itemRepo repository.ItemRepository
	recorder *AuditRecorder
}

func NewItemService(uow repository.UnitOfWork, itemRepo repository.ItemRepository, recorder *AuditRecorder) ItemService {
	return &itemService{uow: uow, itemRepo: itemRepo, recorder: recorder}
}

func (s *itemService) CreateItem(ctx context.Context, actor domain.Actor, item *domain.Item) error {
	const op = "create item"
	item.Title = strings.TrimSpace(item.Title)
	item.Barcode = strings.TrimSpace(item.Barcode)
	if item.Title == "" || item.Barcode == "" {
		return domain.NewValidationError(op, "title and barcode are required")
	}
	if item.ReplacementCostCents < 0 {
		return domain.NewValidationError(op, "replacement cost cannot be negative")
	}
	item.Availability = domain.ItemAvailable

	return s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Items.Create(ctx, item); err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
			Actor:      actor,
			Action:     domain.AuditActionCreate,
			EntityType: domain.EntityItem,
			EntityID:   entityID(item.ID),
			After:      item,
		})
	})
}

func (s *itemService) GetItem(ctx context.Context, id int32) (*domain.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

func (s *itemService) ListItems(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	return s.itemRepo.List(ctx, page, pageSize)
}
