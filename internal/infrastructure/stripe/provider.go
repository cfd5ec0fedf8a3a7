package stripe_infra

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"library/internal/domain"
)

// sessionAPI is the part of the Stripe checkout session client we use.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Config struct {
	SecretKey string
	Timeout   time.Duration
}

// Provider implements domain.CheckoutProvider on top of Stripe Checkout.
type Provider struct {
	sessions sessionAPI
	logger   *zap.Logger
}

// NewProvider builds a client bound to cfg.SecretKey. The package-level
// stripe.Key is never touched.
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	api := client.New(cfg.SecretKey, backends)
	return newProvider(api.CheckoutSessions, logger)
}

func newProvider(sessions sessionAPI, logger *zap.Logger) *Provider {
	return &Provider{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "stripe_provider")),
	}
}

func (p *Provider) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	params := sessionParams(req)
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		p.logger.Error("Failed to create checkout session", zap.String("description", req.Description), zap.Error(err))
		return nil, &domain.ProviderError{Op: "create session", Err: err}
	}

	p.logger.Info("Checkout session created", zap.String("session_id", s.ID))
	return &domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *Provider) GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sessions.Get(sessionID, params)
	if err != nil {
		p.logger.Error("Failed to retrieve checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return "", &domain.ProviderError{Op: "get session", Err: err}
	}
	return sessionStatus(s), nil
}

func sessionParams(req domain.CheckoutRequest) *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
}

// toMinorUnits converts a two-place amount to cents.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func sessionStatus(s *stripe.CheckoutSession) domain.SessionStatus {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return domain.SessionStatusPaid
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return domain.SessionStatusExpired
	default:
		return domain.SessionStatusOpen
	}
}

var _ domain.CheckoutProvider = (*Provider)(nil)
