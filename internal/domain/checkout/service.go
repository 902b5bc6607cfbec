package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

const instrumentationName = "github.com/xenking/digigoods/internal/domain/checkout"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the provider for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meter = mp.Meter(instrumentationName)
	}
}

// WithDeduplicator enables idempotency keys.
func WithDeduplicator(d Deduplicator) Option {
	return func(s *Service) {
		s.dedup = d
	}
}

// Service is the checkout orchestrator. It authorizes a request, resolves
// its products and discounts, prices it, and commits stock, discount usage
// and the order as one unit of work.
type Service struct {
	catalog *product.Catalog
	ledger  *discount.Ledger
	engine  *pricing.Engine
	uow     UnitOfWork
	dedup   Deduplicator

	newID func() string
	now   func() time.Time

	tracer   trace.Tracer
	meter    metric.Meter
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewService creates a checkout Service. catalog and ledger serve the
// read-only resolution step; writes go through uow.
func NewService(
	catalog *product.Catalog,
	ledger *discount.Ledger,
	engine *pricing.Engine,
	uow UnitOfWork,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		catalog: catalog,
		ledger:  ledger,
		engine:  engine,
		uow:     uow,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
		tracer:  tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:   metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.requests, err = s.meter.Int64Counter("digigoods.checkout.requests",
		metric.WithDescription("Checkout requests by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create requests counter")
	}
	if s.duration, err = s.meter.Float64Histogram("digigoods.checkout.duration",
		metric.WithDescription("Checkout processing time"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return s, nil
}

// ProcessCheckout runs a checkout for authenticatedUserID. Nothing is read
// or written unless req.UserID equals authenticatedUserID. Stock, discount
// usage and the order become visible together, or not at all.
func (s *Service) ProcessCheckout(ctx context.Context, req Request, authenticatedUserID int64) (_ *Result, rerr error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "checkout.ProcessCheckout",
		trace.WithAttributes(
			attribute.Int64("digigoods.user_id", req.UserID),
			attribute.Int("digigoods.lines", len(req.ProductIDs)),
			attribute.Int("digigoods.discounts", len(req.DiscountCodes)),
		),
	)
	defer func() {
		s.observe(ctx, span, start, rerr)
		span.End()
	}()

	if req.UserID != authenticatedUserID {
		return nil, &UnauthorizedAccessError{
			RequestedUserID:     req.UserID,
			AuthenticatedUserID: authenticatedUserID,
		}
	}
	if len(req.ProductIDs) == 0 {
		return nil, ErrEmptyProducts
	}

	if req.IdempotencyKey != "" && s.dedup != nil {
		acquired, err := s.dedup.Acquire(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, errors.Wrap(err, "acquire idempotency key")
		}
		if !acquired {
			return nil, ErrDuplicateRequest
		}
		defer func() {
			if rerr == nil {
				return
			}
			if err := s.dedup.Release(context.WithoutCancel(ctx), req.IdempotencyKey); err != nil {
				zctx.From(ctx).Warn("Release idempotency key", zap.Error(err))
			}
		}()
	}

	products, discounts, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, len(products))
	for i, p := range products {
		lines[i] = pricing.Line{ProductID: p.ID, UnitPrice: p.Price}
	}
	quote, err := s.engine.Quote(lines, discounts)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		ID:         s.newID(),
		UserID:     req.UserID,
		ProductIDs: req.ProductIDs,
		FinalPrice: quote.Total,
		CreatedAt:  s.now(),
	}
	if err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		return commit(ctx, repos, o, quote.Discounts)
	}); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Checkout committed",
		zap.Int64("user_id", o.UserID),
		zap.String("order_id", o.ID),
		zap.String("final_price", o.FinalPrice.StringFixed(2)),
		zap.Int("lines", len(o.ProductIDs)),
	)

	return &Result{
		Message:    SuccessMessage,
		FinalPrice: o.FinalPrice,
		OrderID:    o.ID,
	}, nil
}

// resolve loads products and discounts concurrently. Neither call writes.
// When both fail, the product error is reported.
func (s *Service) resolve(ctx context.Context, req Request) ([]product.Product, []discount.Discount, error) {
	var (
		products     []product.Product
		discounts    []discount.Discount
		productsErr  error
		discountsErr error
		g            errgroup.Group
	)
	g.Go(func() error {
		products, productsErr = s.catalog.Resolve(ctx, req.ProductIDs)
		return nil
	})
	g.Go(func() error {
		discounts, discountsErr = s.ledger.Resolve(ctx, req.DiscountCodes)
		return nil
	})
	_ = g.Wait()

	if productsErr != nil {
		return nil, nil, productsErr
	}
	if discountsErr != nil {
		return nil, nil, discountsErr
	}
	return products, discounts, nil
}

func commit(ctx context.Context, repos Repositories, o *order.Order, discounts []discount.Discount) error {
	exists, err := repos.Users.Exists(ctx, o.UserID)
	if err != nil {
		return errors.Wrap(err, "check user")
	}
	if !exists {
		return &user.NotFoundError{UserID: o.UserID}
	}

	if err := product.NewCatalog(repos.Products).ReserveStock(ctx, o.ProductIDs); err != nil {
		return err
	}
	if err := discount.NewLedger(repos.Discounts).RecordUsage(ctx, discounts); err != nil {
		return err
	}
	if err := repos.Orders.Create(ctx, o); err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (s *Service) observe(ctx context.Context, span trace.Span, start time.Time, err error) {
	result := Outcome(err)
	attrs := metric.WithAttributes(attribute.String("outcome", result))
	s.requests.Add(ctx, 1, attrs)
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, result)

	lg := zctx.From(ctx)
	if result == OutcomeError {
		lg.Error("Checkout failed", zap.Error(err))
		return
	}
	lg.Info("Checkout rejected", zap.String("outcome", result), zap.Error(err))
}
