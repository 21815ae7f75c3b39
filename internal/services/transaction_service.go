package services

import (
	"context"
	"errors"
	"fmt"

	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/storage"
)

// EventPublisher announces store changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, t core.Transaction) error
	PublishTransactionDeleted(ctx context.Context, id int64) error
	Close() error
}

// TransactionService orchestrates transaction operations across SQLite and
// the optional event publisher.
type TransactionService struct {
	gateway    *storage.Gateway
	publisher  EventPublisher
	logger     *applog.Logger
	structured *applog.StructuredLogger
}

// NewTransactionService wires the service. publisher may be nil.
func NewTransactionService(gateway *storage.Gateway, publisher EventPublisher, logger *applog.Logger) *TransactionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentService)
	return &TransactionService{
		gateway:    gateway,
		publisher:  publisher,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
	}
}

// Create validates and stores a transaction, returning it with its new id.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionCreate) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.gateway.WithSession(ctx, func(sess *storage.Session) error {
		var err error
		created, err = sess.Create(ctx, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.structured.LogTransactionCreated(ctx, created.ID, created.Type.String(), created.Category, created.Amount, created.Date.String())

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionCreated(ctx, created); err != nil {
			// The row is committed; the event is best effort.
			s.logger.ErrorContext(ctx, "Failed to publish created event",
				applog.FieldTransactionID, created.ID,
				applog.FieldError, err)
		}
	}

	return created, nil
}

// List returns every stored transaction in id order. The slice is never nil.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	var items []core.Transaction
	err := s.gateway.WithSession(ctx, func(sess *storage.Session) error {
		var err error
		items, err = sess.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []core.Transaction{}
	}
	return items, nil
}

// Delete permanently removes a transaction. core.ErrNotFound when id does
// not exist.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	err := s.gateway.WithSession(ctx, func(sess *storage.Session) error {
		if _, err := sess.Get(ctx, id); err != nil {
			return err
		}
		return sess.Delete(ctx, id)
	})
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.structured.LogTransactionDeleted(ctx, id)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionDeleted(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish deleted event",
				applog.FieldTransactionID, id,
				applog.FieldError, err)
		}
	}
	return nil
}

// Ping reports whether the store answers.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

// Close closes both storage and the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if s.gateway != nil {
		if err := s.gateway.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
