// Package hostedwebhook integrates the card provider whose hosted
// checkout settles asynchronously through an HMAC-signed webhook.
// Session creation is a three-step negotiation: auth token, provider
// order, payment key; the payment key is embedded in the redirect URL.
package hostedwebhook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/breaker"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
)

const (
	providerName = "hosted_webhook"
	// paymentKeyExpirySeconds bounds how long the issued payment token
	// stays redeemable at the provider.
	paymentKeyExpirySeconds = 3600
)

// Config holds the merchant credentials for the provider.
type Config struct {
	BaseURL       string
	APIKey        string
	IntegrationID int64
	IframeID      string
	HMACSecret    string
}

// Adapter implements gateway.Adapter for the hosted-webhook provider.
type Adapter struct {
	cfg      Config
	client   *resty.Client
	recorder *settle.Recorder
	breaker  *breaker.Breaker
	log      *zap.Logger
}

// New creates the adapter. recorder must not be nil; a nil breaker
// disables fail-fast guarding.
func New(cfg Config, recorder *settle.Recorder, brk *breaker.Breaker, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		cfg:      cfg,
		client:   resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(15 * time.Second),
		recorder: recorder,
		breaker:  brk,
		log:      log,
	}
}

func (a *Adapter) Name() order.Gateway { return order.GatewayHostedWebhook }

type authTokenResponse struct {
	Token string `json:"token"`
}

type providerOrderResponse struct {
	ID int64 `json:"id"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

type providerItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

type providerBilling struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code"`
}

// orEmpty substitutes the provider's required "NA" placeholder for
// optional billing fields it refuses to accept blank.
func orEmpty(v string) string {
	if v == "" {
		return "NA"
	}
	return v
}

// CreateSession performs the three provider round-trips and composes
// the hosted checkout URL. No partial state is persisted on failure;
// the order stays retryable.
func (a *Adapter) CreateSession(ctx context.Context, req gateway.CreateSessionRequest) (gateway.Session, error) {
	tracer := otel.Tracer("gateway.hostedwebhook")
	ctx, span := tracer.Start(ctx, "HostedWebhook.CreateSession")
	defer span.End()

	if a.breaker != nil && !a.breaker.Allow(providerName) {
		return gateway.Session{}, errs.GatewayUnavailable("card provider circuit open", "", nil)
	}

	token, err := a.authToken(ctx)
	if err != nil {
		return gateway.Session{}, err
	}

	providerOrderID, err := a.registerOrder(ctx, token, req)
	if err != nil {
		return gateway.Session{}, err
	}

	paymentKey, err := a.paymentKey(ctx, token, providerOrderID, req)
	if err != nil {
		return gateway.Session{}, err
	}

	if a.breaker != nil {
		a.breaker.RecordSuccess(providerName)
	}
	return gateway.Session{
		SessionID: strconv.FormatInt(providerOrderID, 10),
		RedirectURL: fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s",
			a.cfg.BaseURL, a.cfg.IframeID, paymentKey),
		ExpiresAt: time.Now().Add(paymentKeyExpirySeconds * time.Second),
	}, nil
}

func (a *Adapter) authToken(ctx context.Context) (string, error) {
	var out authTokenResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"api_key": a.cfg.APIKey}).
		SetResult(&out).
		Post("/auth/tokens")
	if err := a.checkResponse(resp, err, "auth token"); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (a *Adapter) registerOrder(ctx context.Context, token string, req gateway.CreateSessionRequest) (int64, error) {
	items := make([]providerItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, providerItem{
			Name:        it.Name,
			AmountCents: it.AmountMinor,
			Quantity:    it.Quantity,
			Description: it.Description,
		})
	}
	var out providerOrderResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"auth_token":        token,
			"delivery_needed":   false,
			"amount_cents":      req.AmountMinor,
			"currency":          req.Currency,
			"merchant_order_id": req.OrderID,
			"items":             items,
		}).
		SetResult(&out).
		Post("/ecommerce/orders")
	if err := a.checkResponse(resp, err, "order registration"); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (a *Adapter) paymentKey(ctx context.Context, token string, providerOrderID int64, req gateway.CreateSessionRequest) (string, error) {
	b := req.Billing
	var out paymentKeyResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"auth_token":   token,
			"amount_cents": req.AmountMinor,
			"expiration":   paymentKeyExpirySeconds,
			"order_id":     providerOrderID,
			"currency":     req.Currency,
			"integration_id": a.cfg.IntegrationID,
			"billing_data": providerBilling{
				FirstName:   b.FirstName,
				LastName:    b.LastName,
				Email:       b.Email,
				PhoneNumber: b.PhoneNumber,
				Street:      orEmpty(b.Street),
				Building:    orEmpty(b.Building),
				Floor:       orEmpty(b.Floor),
				Apartment:   orEmpty(b.Apartment),
				City:        orEmpty(b.City),
				Country:     orEmpty(b.Country),
				PostalCode:  orEmpty(b.PostalCode),
			},
		}).
		SetResult(&out).
		Post("/acceptance/payment_keys")
	if err := a.checkResponse(resp, err, "payment key"); err != nil {
		return "", err
	}
	return out.Token, nil
}

// checkResponse normalizes transport errors and non-2xx provider
// responses into GatewayUnavailable, recording the breaker outcome.
func (a *Adapter) checkResponse(resp *resty.Response, err error, step string) error {
	if err != nil {
		if a.breaker != nil {
			a.breaker.RecordFailure(providerName)
		}
		return errs.GatewayUnavailable("card provider "+step+" request failed", "", err)
	}
	if resp.IsError() {
		if a.breaker != nil {
			a.breaker.RecordFailure(providerName)
		}
		a.log.Error("card provider step rejected",
			zap.String("step", step),
			zap.Int("status", resp.StatusCode()),
		)
		e := errs.GatewayUnavailable(
			fmt.Sprintf("card provider %s returned HTTP %d", step, resp.StatusCode()),
			string(resp.Body()), nil)
		e.UpstreamStatus = resp.StatusCode()
		return e
	}
	return nil
}
