package usecase

import (
	"context"

	"universal-loyalty-ledger/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase aggregates back-office numbers across partners.
type StatsUseCase interface {
	Totals(ctx context.Context) (partners int, customersByPartner map[string]int, err error)
	// ShadowOutstanding reports how many shadow accounts still wait for a
	// claim and how many points they hold in total.
	ShadowOutstanding(ctx context.Context) (pending int, points int64, err error)
}

type statsUC struct {
	partners  repository.PartnerRepository
	customers repository.CustomerRepository
	shadows   repository.ShadowAccountRepository

	log *zerolog.Logger
}

func NewStatsUseCase(partners repository.PartnerRepository, customers repository.CustomerRepository, shadows repository.ShadowAccountRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{partners: partners, customers: customers, shadows: shadows, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, map[string]int, error) {
	all, err := s.partners.List(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	byPartner := make(map[string]int, len(all))
	for _, p := range all {
		n, err := s.customers.CountByPartner(ctx, repository.NoTX, p.ID)
		if err != nil {
			return 0, nil, err
		}
		byPartner[p.Name] = n
	}
	return len(all), byPartner, nil
}

func (s *statsUC) ShadowOutstanding(ctx context.Context) (int, int64, error) {
	all, err := s.partners.List(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, err
	}
	pending, points := 0, int64(0)
	for _, p := range all {
		accounts, err := s.shadows.ListByPartner(ctx, repository.NoTX, p.ID)
		if err != nil {
			return 0, 0, err
		}
		for _, sh := range accounts {
			if sh.PendingActivation {
				pending++
				points += sh.Points
			}
		}
	}
	return pending, points, nil
}
