package service

import (
	"context"
	"time"

	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
)

type sanctionService struct {
	uow          repository.UnitOfWork
	sanctionRepo repository.SanctionRepository
	recorder     *AuditRecorder
	now          func() time.Time
}

func NewSanctionService(uow repository.UnitOfWork, sanctionRepo repository.SanctionRepository, recorder *AuditRecorder) SanctionService {
	return &sanctionService{uow: uow, sanctionRepo: sanctionRepo, recorder: recorder, now: time.Now}
}

func (s *sanctionService) ListByPatron(ctx context.Context, patronID int32) ([]domain.Sanction, error) {
	return s.sanctionRepo.ListByPatron(ctx, patronID)
}

func (s *sanctionService) Fulfill(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error) {
	return s.resolve(ctx, actor, "fulfill sanction", sanctionID, domain.SanctionStatusFulfilled, notes)
}

func (s *sanctionService) Forgive(ctx context.Context, actor domain.Actor, sanctionID int32, notes string) (*domain.Sanction, error) {
	return s.resolve(ctx, actor, "forgive sanction", sanctionID, domain.SanctionStatusForgiven, notes)
}

func (s *sanctionService) resolve(ctx context.Context, actor domain.Actor, op string, sanctionID int32, to domain.SanctionStatus, notes string) (*domain.Sanction, error) {
	logger.EnterMethod("sanctionService.resolve", "sanctionID", sanctionID, "to", to)

	now := s.now().UTC()
	var result *domain.Sanction
	err := s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		sanction, err := repos.Sanctions.GetForUpdate(ctx, sanctionID)
		if err != nil {
			return err
		}
		before := sanction.Clone()
		if err := sanction.Resolve(op, to, notes, now); err != nil {
			return err
		}
		if err := repos.Sanctions.Update(ctx, sanction); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, repos.Audit, domain.AuditChange{
			Actor:      actor,
			Action:     domain.AuditActionResolved,
			EntityType: domain.EntitySanction,
			EntityID:   entityID(sanction.ID),
			Before:     before,
			After:      sanction,
		}); err != nil {
			return err
		}
		result = sanction
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("sanctionService.resolve", err, "sanctionID", sanctionID)
		return nil, err
	}

	logger.ExitMethod("sanctionService.resolve", "sanctionID", sanctionID, "status", result.Status)
	return result, nil
}
