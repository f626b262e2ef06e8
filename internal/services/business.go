package services

import (
	"context"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/qr"
	"financetracker/internal/storage"
)

// BusinessService creates businesses from scanned receipts.
type BusinessService struct {
	store  *storage.Store
	logger *applog.Logger
}

func NewBusinessService(store *storage.Store, logger *applog.Logger) *BusinessService {
	return &BusinessService{
		store:  store,
		logger: logger.WithComponent(applog.ComponentBusiness),
	}
}

// FromQRCode creates a business whose code is the payload's business code.
// Name and default classification come from fields, which also win over
// the payload.
func (s *BusinessService) FromQRCode(ctx context.Context, payload qr.Payload, fields core.Fields) (core.Business, error) {
	f := core.Fields{core.FieldCode: payload.BusinessCode}.Merge(fields)

	b, err := s.store.Businesses.Create(ctx, f)
	if err != nil {
		return core.Business{}, err
	}

	s.logger.InfoContext(ctx, "Business created from QR code",
		applog.FieldBusinessCode, b.Code,
		applog.FieldEntityID, b.ID)
	return b, nil
}
