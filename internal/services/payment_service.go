package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/infra"
	"furniture-order-service/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RetryPolicy bounds gateway verification: attempt n waits BaseDelay*2^n, capped at MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// verifyCallBudget is the allowance for a single gateway call inside a shared verification.
const verifyCallBudget = 30 * time.Second

// budget bounds one shared verification: every backoff plus a call allowance per attempt.
func (p RetryPolicy) budget() time.Duration {
	total := time.Duration(p.Attempts) * verifyCallBudget
	for i := 0; i < p.Attempts-1; i++ {
		total += p.Delay(i)
	}
	return total
}

var errGatewayPending = errors.New("gateway reported pending")

type PaymentService struct {
	orders  *OrderService
	gateway infra.PaymentGateway
	retry   RetryPolicy
	group   singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one reference.
// It is cancelled once the last waiter gives up.
type flight struct {
	ctx      context.Context
	cancel   context.CancelFunc
	waiters  int
	attempts atomic.Int32
}

func NewPaymentService(orders *OrderService, gateway infra.PaymentGateway, retry RetryPolicy) *PaymentService {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &PaymentService{
		orders:  orders,
		gateway: gateway,
		retry:   retry,
		flights: make(map[string]*flight),
	}
}

func initiable(o *domain.Order) error {
	if o.IsQuote {
		return fmt.Errorf("%w: quotes cannot be paid", domain.ErrPaymentNotInitiable)
	}
	if o.Status != domain.StatusPending && o.Status != domain.StatusConfirmed {
		return fmt.Errorf("%w: order is %s", domain.ErrPaymentNotInitiable, o.Status)
	}
	if o.PaymentStatus != domain.PaymentPending {
		return fmt.Errorf("%w: payment is %s", domain.ErrPaymentNotInitiable, o.PaymentStatus)
	}
	return nil
}

// Initiate returns a checkout URL for the caller's order. The transaction
// reference is stored on the order before the URL is handed out; a repeated
// call returns the stored session without contacting the gateway.
func (s *PaymentService) Initiate(ctx context.Context, userID string, orderID uint64) (*domain.PaymentSession, error) {
	order, err := s.orders.GetUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := initiable(order); err != nil {
		return nil, err
	}
	if order.TransactionRef != nil {
		return &domain.PaymentSession{CheckoutURL: order.CheckoutURL, TransactionRef: *order.TransactionRef}, nil
	}

	session, err := s.gateway.Initiate(ctx, infra.PaymentRequest{
		Amount:      order.Total,
		Reference:   order.Reference,
		Description: fmt.Sprintf("Order %s", order.Reference),
	})
	if err != nil {
		log.Error().Err(err).Uint64("order_id", orderID).Msg("payment initiation failed")
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	var stored *domain.PaymentSession
	err = s.orders.store.Transaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if locked == nil || locked.UserID != userID {
			return domain.ErrOrderNotFound
		}
		if err := initiable(locked); err != nil {
			return err
		}
		if locked.TransactionRef != nil {
			stored = &domain.PaymentSession{CheckoutURL: locked.CheckoutURL, TransactionRef: *locked.TransactionRef}
			return nil
		}
		ref := session.TransactionRef
		locked.TransactionRef = &ref
		locked.CheckoutURL = session.CheckoutURL
		stored = session
		return tx.Orders().UpdateState(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("order_id", orderID).Str("transaction_ref", stored.TransactionRef).Msg("payment initiated")
	s.orders.invalidate(ctx, userID)
	return stored, nil
}

// Verify reconciles the gateway outcome for a transaction reference.
// Concurrent calls for the same reference share one reconciliation, which
// keeps running while any caller still waits on it. A caller whose context
// ends gets a PaymentVerificationTimeoutError; the others are unaffected.
func (s *PaymentService) Verify(ctx context.Context, transactionRef string) (*domain.PaymentResult, error) {
	if transactionRef == "" {
		return nil, &domain.ValidationError{Field: "transactionRef", Reason: "required"}
	}
	f := s.join(ctx, transactionRef)
	defer s.leave(transactionRef, f)

	ch := s.group.DoChan(transactionRef, func() (any, error) {
		return s.verify(f.ctx, transactionRef, &f.attempts)
	})
	select {
	case <-ctx.Done():
		return nil, &domain.PaymentVerificationTimeoutError{
			TransactionRef: transactionRef,
			Attempts:       int(f.attempts.Load()),
			LastErr:        ctx.Err(),
		}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*domain.PaymentResult)
		return &res, nil
	}
}

// join registers the caller on the reference's flight, detached from the
// caller's own cancellation and bounded by the retry budget.
func (s *PaymentService) join(ctx context.Context, ref string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[ref]
	if !ok {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.retry.budget())
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[ref] = f
	}
	f.waiters++
	return f
}

func (s *PaymentService) leave(ref string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[ref] == f {
		delete(s.flights, ref)
		s.group.Forget(ref)
	}
}

func (s *PaymentService) verify(ctx context.Context, ref string, made *atomic.Int32) (*domain.PaymentResult, error) {
	order, err := s.orders.store.Orders().FindByTransactionRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &domain.UnknownTransactionError{TransactionRef: ref}
	}
	if order.PaymentStatus.Settled() {
		return resultOf(order), nil
	}

	outcome, err := s.poll(ctx, ref, made)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ref, outcome)
}

// poll asks the gateway until it reports a definite outcome or the attempt
// ceiling is reached.
func (s *PaymentService) poll(ctx context.Context, ref string, made *atomic.Int32) (*domain.PaymentVerification, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, s.retry.Delay(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		made.Add(1)
		v, err := s.gateway.Verify(ctx, ref)
		switch {
		case err != nil:
			s.orders.metrics.VerifyAttempt("error")
			lastErr = err
		case v.Status == domain.GatewayPending:
			s.orders.metrics.VerifyAttempt("pending")
			lastErr = errGatewayPending
		default:
			s.orders.metrics.VerifyAttempt(string(v.Status))
			return v, nil
		}
		log.Warn().Err(lastErr).Str("transaction_ref", ref).Int("attempt", attempt+1).Msg("payment not settled")
	}
	return nil, &domain.PaymentVerificationTimeoutError{TransactionRef: ref, Attempts: int(made.Load()), LastErr: lastErr}
}

func (s *PaymentService) apply(ctx context.Context, ref string, v *domain.PaymentVerification) (*domain.PaymentResult, error) {
	var (
		order    *domain.Order
		invoice  *domain.Invoice
		advanced bool
		changed  bool
	)
	err := s.orders.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().FindByTransactionRefForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if order == nil {
			return &domain.UnknownTransactionError{TransactionRef: ref}
		}
		if order.PaymentStatus.Settled() {
			return nil
		}

		switch v.Status {
		case domain.GatewaySuccess:
			if !v.Amount.Equal(order.Total) {
				return &domain.PaymentAmountMismatchError{TransactionRef: ref, Expected: order.Total, Verified: v.Amount}
			}
			if err := order.ApplyPayment(domain.PaymentPaid); err != nil {
				return err
			}
			if v.PaymentID != "" {
				id := v.PaymentID
				order.PaymentID = &id
			}
			invoice, advanced, err = s.orders.confirmPaid(ctx, tx, order)
			if err != nil {
				return err
			}
		case domain.GatewayFailed:
			if err := order.ApplyPayment(domain.PaymentFailed); err != nil {
				return err
			}
		}
		changed = true
		return tx.Orders().UpdateState(ctx, order)
	})
	if err != nil {
		var mismatch *domain.PaymentAmountMismatchError
		if errors.As(err, &mismatch) {
			log.Error().Str("transaction_ref", ref).Str("expected", mismatch.Expected.String()).
				Str("verified", mismatch.Verified.String()).Msg("payment amount mismatch")
		}
		return nil, err
	}

	if changed {
		log.Info().Uint64("order_id", order.ID).Str("transaction_ref", ref).
			Str("payment_status", string(order.PaymentStatus)).Msg("payment reconciled")
		s.orders.afterPayment(ctx, order, advanced, invoice)
	}
	return resultOf(order), nil
}

func resultOf(o *domain.Order) *domain.PaymentResult {
	res := &domain.PaymentResult{
		OrderID:       o.ID,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
	}
	if o.TransactionRef != nil {
		res.TransactionRef = *o.TransactionRef
	}
	if o.PaymentID != nil {
		res.PaymentID = *o.PaymentID
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
