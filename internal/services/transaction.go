package services

import (
	"context"
	"fmt"
	"time"

	"financetracker/internal/amqp"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/qr"
	"financetracker/internal/storage"
)

// Publisher receives ledger events. *amqp.Client implements it.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error
}

// TransactionService ingests transactions, filling in the period, business
// defaults and beneficiary before they reach the store.
type TransactionService struct {
	store     *storage.Store
	periods   *PeriodResolver
	publisher Publisher
	now       func() time.Time
	logger    *applog.Logger
}

// NewTransactionService wires the service. publisher may be nil.
func NewTransactionService(store *storage.Store, periods *PeriodResolver, publisher Publisher, logger *applog.Logger) *TransactionService {
	return &TransactionService{
		store:     store,
		periods:   periods,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.WithComponent(applog.ComponentTransaction),
	}
}

// Create stores a transaction. A missing period is resolved from the
// transaction date (or today), missing classification is taken from the
// business and account_for_id defaults to account_id.
func (s *TransactionService) Create(ctx context.Context, fields core.Fields) (core.Transaction, error) {
	f := fields.Clone()

	var periodFor time.Time
	if !f.Has(core.FieldPeriodID) {
		periodFor = s.now()
		if f.Has(core.FieldTransactionDate) {
			d, err := dateField(f, core.FieldTransactionDate)
			if err != nil {
				return core.Transaction{}, err
			}
			periodFor = d.Time
		}
	}
	return s.create(ctx, f, periodFor)
}

// FromQRCode records the purchase described by a scanned receipt. The
// business must already exist; overrides win over every derived field.
// The period follows the receipt date unless overrides name one.
func (s *TransactionService) FromQRCode(ctx context.Context, payload qr.Payload, overrides core.Fields) (core.Transaction, error) {
	biz, err := s.store.Businesses.FindOne(ctx, core.Fields{core.FieldCode: payload.BusinessCode})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find business: %w", err)
	}
	if biz == nil {
		return core.Transaction{}, &core.NotFoundError{Kind: core.KindBusiness, Key: "code=" + payload.BusinessCode}
	}

	fields := core.Fields{
		core.FieldCode:            payload.LedgerCode(),
		core.FieldAmount:          payload.Amount,
		core.FieldTransactionDate: payload.Date,
		core.FieldBusinessID:      biz.ID,
		core.FieldCategoryID:      biz.DefaultCategoryID,
		core.FieldSubcategoryID:   biz.DefaultSubcategoryID,
	}.Merge(overrides)

	var periodFor time.Time
	if !fields.Has(core.FieldPeriodID) {
		periodFor = payload.Date.Time
	}
	return s.create(ctx, fields, periodFor)
}

// create fills the derived fields of f and inserts it. When periodFor is
// set, the period containing it is found or created in the same SQL
// transaction as the insert, so a rejected transaction leaves no period
// behind.
func (s *TransactionService) create(ctx context.Context, f core.Fields, periodFor time.Time) (core.Transaction, error) {
	if f.Has(core.FieldBusinessID) && (!f.Has(core.FieldCategoryID) || !f.Has(core.FieldSubcategoryID)) {
		if err := s.applyBusinessDefaults(ctx, f); err != nil {
			return core.Transaction{}, err
		}
	}

	if !f.Has(core.FieldAccountForID) && f.Has(core.FieldAccountID) {
		f[core.FieldAccountForID] = f[core.FieldAccountID]
	}

	var t core.Transaction
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		if !periodFor.IsZero() {
			p, err := s.periods.ResolveIn(ctx, tx, periodFor)
			if err != nil {
				return fmt.Errorf("resolve period: %w", err)
			}
			f[core.FieldPeriodID] = p.ID
		}
		var err error
		t, err = s.store.Transactions.CreateIn(ctx, tx, f)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithTransaction(t.Code, t.Amount.String(), t.AccountID, "").
			ToSlice()...)
	s.publish(ctx, amqp.EventTransactionCreated, t)
	return t, nil
}

// Update changes the fields of a stored transaction. A new
// transaction_date without an explicit period_id moves the transaction to
// the period of that date.
func (s *TransactionService) Update(ctx context.Context, id int64, fields core.Fields) (core.Transaction, error) {
	f := fields.Clone()

	var periodFor time.Time
	if f.Has(core.FieldTransactionDate) && !f.Has(core.FieldPeriodID) {
		d, err := dateField(f, core.FieldTransactionDate)
		if err != nil {
			return core.Transaction{}, err
		}
		periodFor = d.Time
	}

	var t core.Transaction
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		if !periodFor.IsZero() {
			p, err := s.periods.ResolveIn(ctx, tx, periodFor)
			if err != nil {
				return fmt.Errorf("resolve period: %w", err)
			}
			f[core.FieldPeriodID] = p.ID
		}
		var err error
		t, err = s.store.Transactions.UpdateIn(ctx, tx, id, f)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldEntityID, id,
		"period_id", t.PeriodID)
	return t, nil
}

// Cancel records a reversal of the transaction with id. The original row
// is left untouched.
func (s *TransactionService) Cancel(ctx context.Context, id int64) (core.Transaction, error) {
	orig, err := s.store.Transactions.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if orig == nil {
		return core.Transaction{}, core.NotFoundID(core.KindTransaction, id)
	}
	if orig.IsReversal() {
		return core.Transaction{}, core.NewValidationError(core.KindTransaction, core.FieldReversesID,
			fmt.Sprintf("transaction %d is itself a reversal", id))
	}

	existing, err := s.store.Transactions.FindOne(ctx, core.Fields{core.FieldReversesID: id})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find reversal: %w", err)
	}
	if existing != nil {
		return core.Transaction{}, &core.ValidationError{
			Kind:   core.KindTransaction,
			Field:  core.FieldReversesID,
			Reason: fmt.Sprintf("transaction %d is already cancelled by %d", id, existing.ID),
			Err:    core.ErrDuplicate,
		}
	}

	reversal, err := s.store.Transactions.Create(ctx, core.Fields{
		core.FieldCode:            orig.Code + "-reversal",
		core.FieldAmount:          orig.Amount.Neg(),
		core.FieldTransactionDate: orig.TransactionDate,
		core.FieldAccountID:       orig.AccountID,
		core.FieldAccountForID:    orig.AccountForID,
		core.FieldCategoryID:      orig.CategoryID,
		core.FieldSubcategoryID:   orig.SubcategoryID,
		core.FieldBusinessID:      orig.BusinessID,
		core.FieldPeriodID:        orig.PeriodID,
		core.FieldReversesID:      orig.ID,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction cancelled",
		applog.FieldOperation, applog.OpCancel,
		applog.FieldEntityID, id,
		"reversal_id", reversal.ID)
	s.publish(ctx, amqp.EventTransactionCancelled, reversal)
	return reversal, nil
}

func (s *TransactionService) applyBusinessDefaults(ctx context.Context, f core.Fields) error {
	id, err := intField(f, core.FieldBusinessID)
	if err != nil {
		return err
	}
	biz, err := s.store.Businesses.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	if biz == nil {
		return core.NewValidationError(core.KindTransaction, core.FieldBusinessID,
			fmt.Sprintf("references missing business id=%d", id))
	}
	if !f.Has(core.FieldCategoryID) {
		f[core.FieldCategoryID] = biz.DefaultCategoryID
	}
	if !f.Has(core.FieldSubcategoryID) {
		f[core.FieldSubcategoryID] = biz.DefaultSubcategoryID
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, eventType string, t core.Transaction) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", eventType)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(eventType, t)); err != nil {
		// Don't fail the write - the row is already committed
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			"type", eventType,
			applog.FieldEntityID, t.ID,
			applog.FieldError, err)
	}
}

// intField coerces one transaction field through the schema.
func intField(f core.Fields, name string) (int64, error) {
	n, err := core.TransactionSchema.Normalize(core.Fields{name: f[name]})
	if err != nil {
		return 0, err
	}
	v, _ := n.Values[name].(int64)
	return v, nil
}

func dateField(f core.Fields, name string) (core.Date, error) {
	n, err := core.TransactionSchema.Normalize(core.Fields{name: f[name]})
	if err != nil {
		return core.Date{}, err
	}
	s, _ := n.Values[name].(string)
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.NewValidationError(core.KindTransaction, name, "must be YYYY-MM-DD")
	}
	return d, nil
}
