// Package httpapi exposes the checkout endpoints: session creation,
// the provider callbacks, the status poll and the wallet handshake.
// Handlers translate between the public wire contracts and the gateway
// adapters; they own no payment logic.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/hostedredirect"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/hostedwebhook"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/wallet"
	"github.com/221008874/Louable-EGYPT-sub000/internal/metrics"
	"github.com/221008874/Louable-EGYPT-sub000/internal/monitor"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/reconciler"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
)

// Server wires the handlers to their collaborators.
type Server struct {
	orders         order.Store
	registry       *gateway.Registry
	webhookGate    *hostedwebhook.Adapter
	redirectGate   *hostedredirect.Adapter
	walletGate     *wallet.Adapter
	recorder       *settle.Recorder
	recon          *reconciler.Reconciler
	sessionSchema  *monitor.ContractMonitor
	webhookSchema  *monitor.ContractMonitor
	metrics        *metrics.Metrics
	log            *zap.Logger
	metricsHandler http.Handler
}

// New creates the Server.
func New(
	orders order.Store,
	registry *gateway.Registry,
	webhookGate *hostedwebhook.Adapter,
	redirectGate *hostedredirect.Adapter,
	walletGate *wallet.Adapter,
	recorder *settle.Recorder,
	recon *reconciler.Reconciler,
	sessionSchema, webhookSchema *monitor.ContractMonitor,
	m *metrics.Metrics,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		orders:         orders,
		registry:       registry,
		webhookGate:    webhookGate,
		redirectGate:   redirectGate,
		walletGate:     walletGate,
		recorder:       recorder,
		recon:          recon,
		sessionSchema:  sessionSchema,
		webhookSchema:  webhookSchema,
		metrics:        m,
		log:            log,
		metricsHandler: promhttp.Handler(),
	}
}

// Register mounts the routes on engine.
func (s *Server) Register(engine *gin.Engine) {
	engine.Use(CORS())
	api := engine.Group("/api")
	api.POST("/checkout/session", s.createSession)
	api.OPTIONS("/checkout/session", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/payments/card/webhook", s.cardWebhook)
	api.POST("/payments/redirect/notify", s.redirectNotify)
	api.POST("/payments/status", s.pollStatus)
	api.POST("/payments/wallet/approve", s.walletApprove)
	api.POST("/payments/wallet/complete", s.walletComplete)
	engine.GET("/metrics", gin.WrapH(s.metricsHandler))
}

// SessionRequest is the session-creation input.
type SessionRequest struct {
	AmountMinor   int64               `json:"amountMinor"`
	Currency      string              `json:"currency"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod"`
	Gateway       order.Gateway       `json:"gateway"`
	Billing       gateway.BillingData `json:"billing"`
	Items         []gateway.LineItem  `json:"items"`
}

// SessionResponse is the session-creation output.
type SessionResponse struct {
	OrderID     string `json:"orderId"`
	SessionID   string `json:"sessionId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Status      string `json:"status"`
}

func (s *Server) createSession(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}
	if ok, violations, verr := s.sessionSchema.Validate(body); verr != nil || !ok {
		msg := monitor.FormatErrors(violations)
		if msg == "" {
			msg = "malformed request body"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	var req SessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	gw := req.Gateway
	if gw == "" {
		switch req.PaymentMethod {
		case order.PaymentCashOnDelivery:
			gw = order.GatewayNone
		case order.PaymentWallet:
			gw = order.GatewayWalletHandshake
		default:
			gw = order.GatewayHostedWebhook
		}
	}

	o := &order.Order{
		OrderID:       "order_" + uuid.NewString(),
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Gateway:       gw,
		Status:        order.StatusCreated,
		CreatedAt:     time.Now(),
	}
	if err := s.orders.Create(c.Request.Context(), o); err != nil {
		s.respondError(c, err)
		return
	}

	// Wallet payments are initiated by the client SDK; the order waits in
	// created until the approve call binds the provider payment to it.
	if gw == order.GatewayWalletHandshake {
		c.JSON(http.StatusOK, SessionResponse{OrderID: o.OrderID, Status: string(order.StatusCreated)})
		return
	}

	// Cash orders skip gateway interaction entirely.
	if gw == order.GatewayNone {
		if _, _, err := s.orders.Apply(c.Request.Context(), o.OrderID, order.EventSessionOpened, nil); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, SessionResponse{OrderID: o.OrderID, Status: string(order.StatusAwaitingPayment)})
		return
	}

	adapter, err := s.registry.Adapter(gw)
	if err != nil {
		s.respondError(c, err)
		return
	}
	session, err := adapter.CreateSession(c.Request.Context(), gateway.CreateSessionRequest{
		OrderID:     o.OrderID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Billing:     req.Billing,
		Items:       req.Items,
	})
	if err != nil {
		s.metrics.SessionFailures.WithLabelValues(string(gw)).Inc()
		// No partial state: the order stays created/awaiting retry.
		s.respondError(c, err)
		return
	}

	if err := s.orders.AttachSession(c.Request.Context(), o.OrderID, session.SessionID, session.ExpiresAt); err != nil {
		s.respondError(c, err)
		return
	}
	if _, _, err := s.orders.Apply(c.Request.Context(), o.OrderID, order.EventSessionOpened, nil); err != nil {
		s.respondError(c, err)
		return
	}
	s.metrics.SessionsCreated.WithLabelValues(string(gw)).Inc()

	// The reconciler outlives the request; it stops on its own budget
	// or when the order settles through a push channel.
	go func(orderID, sessionID string) {
		outcome := s.recon.Run(context.Background(), orderID, sessionID)
		s.metrics.Reconciliations.WithLabelValues(string(outcome)).Inc()
	}(o.OrderID, session.SessionID)

	c.JSON(http.StatusOK, SessionResponse{
		OrderID:     o.OrderID,
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
		Status:      string(order.StatusAwaitingPayment),
	})
}

// cardWebhook accepts the hosted-webhook provider's callback. The
// response contract is fixed: bare OK, Invalid HMAC, or Error. The
// handler is idempotent under at-least-once redelivery because the
// state machine treats the duplicate edge as a no-op.
func (s *Server) cardWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues("error").Inc()
		c.String(http.StatusInternalServerError, "Error")
		return
	}
	if ok, violations, verr := s.webhookSchema.Validate(body); verr != nil || !ok {
		s.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		s.log.Warn("webhook envelope rejected", zap.String("reason", monitor.FormatErrors(violations)))
		c.String(http.StatusBadRequest, "Error")
		return
	}
	var ev hostedwebhook.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		c.String(http.StatusBadRequest, "Error")
		return
	}

	if _, err := s.webhookGate.HandleWebhook(c.Request.Context(), ev, c.Query("hmac")); err != nil {
		switch kind, _ := errs.KindOf(err); kind {
		case errs.KindAuthentication:
			s.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			c.String(http.StatusBadRequest, "Invalid HMAC")
		case errs.KindNotFound:
			s.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			c.String(http.StatusNotFound, "Error")
		default:
			s.metrics.WebhookEvents.WithLabelValues("error").Inc()
			s.log.Error("webhook processing failed", zap.Error(err))
			c.String(http.StatusInternalServerError, "Error")
		}
		return
	}
	s.metrics.WebhookEvents.WithLabelValues("accepted").Inc()
	c.String(http.StatusOK, "OK")
}

func (s *Server) redirectNotify(c *gin.Context) {
	var n hostedredirect.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		s.metrics.RedirectEvents.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: " + err.Error()})
		return
	}
	if _, err := s.redirectGate.HandleReturn(c.Request.Context(), n); err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindAuthentication {
			s.metrics.RedirectEvents.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		s.metrics.RedirectEvents.WithLabelValues("error").Inc()
		s.respondError(c, err)
		return
	}
	s.metrics.RedirectEvents.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// pollStatus returns the cached settlement outcome, or a pending marker
// when nothing has been observed yet. It never blocks.
func (s *Server) pollStatus(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	s.metrics.StatusPolls.Inc()
	entry, ok := s.recorder.Poll(req.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "pending"})
		return
	}
	status := "failed"
	if entry.Succeeded {
		status = "succeeded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"sessionId":     entry.SessionID,
		"transactionId": entry.TransactionID,
		"amountMinor":   entry.AmountMinor,
		"currency":      entry.Currency,
		"failureReason": entry.FailureReason,
	})
}

func (s *Server) walletApprove(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentId is required"})
		return
	}
	p, err := s.walletGate.Approve(c.Request.Context(), req.PaymentID)
	if err != nil {
		s.metrics.WalletHandshakes.WithLabelValues("approve", "failure").Inc()
		s.respondWalletError(c, err)
		return
	}
	s.metrics.WalletHandshakes.WithLabelValues("approve", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "approved", "payment": p})
}

func (s *Server) walletComplete(c *gin.Context) {
	var req struct {
		PaymentID     string `json:"paymentId" binding:"required"`
		TransactionID string `json:"transactionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentId and transactionId are required"})
		return
	}
	p, err := s.walletGate.Complete(c.Request.Context(), req.PaymentID, req.TransactionID)
	if err != nil {
		s.metrics.WalletHandshakes.WithLabelValues("complete", "failure").Inc()
		s.respondWalletError(c, err)
		return
	}
	s.metrics.WalletHandshakes.WithLabelValues("complete", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "completed", "payment": p})
}

// respondWalletError mirrors the provider's status code and body when
// the handshake failed upstream, so clients can diagnose; everything
// else falls back to the shared mapping.
func (s *Server) respondWalletError(c *gin.Context, err error) {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindGatewayUnavailable && e.UpstreamStatus > 0 {
		c.Data(e.UpstreamStatus, "application/json", []byte(e.Detail))
		return
	}
	s.respondError(c, err)
}

// respondError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		body := gin.H{"error": e.Message}
		if e.Detail != "" {
			body["detail"] = e.Detail
		}
		c.JSON(e.HTTPStatus(), body)
		return
	}
	s.log.Error("unclassified handler error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
