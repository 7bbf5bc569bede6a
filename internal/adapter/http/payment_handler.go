package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/GovindKumar26/petstore-api/internal/adapter/http/middleware"
	"github.com/GovindKumar26/petstore-api/internal/adapter/observ"
	"github.com/GovindKumar26/petstore-api/internal/adapter/payment"
	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

const webhookBodyLimit = 64 * 1024

type PaymentHandler struct {
	initiate  *usecase.InitiatePayment
	reconcile *usecase.Reconciler
	cache     usecase.OrderCache
	storeURL  string
}

func NewPaymentHandler(initiate *usecase.InitiatePayment, reconcile *usecase.Reconciler, cache usecase.OrderCache, storeURL string) *PaymentHandler {
	return &PaymentHandler{initiate: initiate, reconcile: reconcile, cache: cache, storeURL: storeURL}
}

// POST /api/payments/:id/initiate returns the signed gateway form for
// the browser to auto-submit.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	u, _ := c.Get(middleware.CtxUser)
	user, ok := u.(*domain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	form, err := h.initiate.Execute(c.Request.Context(), c.Param("id"), user.ID, user.Email)
	if err != nil {
		writeOrderErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": form})
}

// callbackForm flattens the gateway's POST form into the raw map the
// verifier recomputes the hash over.
func callbackForm(c *gin.Context) map[string]string {
	_ = c.Request.ParseForm()
	form := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	return form
}

// Callback handles both surl and furl browser redirects from the
// gateway. The outcome decides where the customer lands; the order
// state is settled by the reconciler, never by which URL was hit.
func (h *PaymentHandler) Callback(c *gin.Context) {
	form := callbackForm(c)
	cb, err := payment.ParseCallback(form)
	if err != nil {
		observ.PaymentCallbacks.WithLabelValues(payment.ProviderPayU, "mismatch").Inc()
		c.Redirect(http.StatusSeeOther, h.storeURL+"/payment/failed")
		return
	}

	res, err := h.reconcile.HandleCallback(c.Request.Context(), payment.ProviderPayU, cb)
	h.countOutcome(payment.ProviderPayU, res, err)

	if res.Order != nil && h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), res.Order.ID, string(res.Order.Status))
	}

	switch {
	case err == nil && cb.Success:
		c.Redirect(http.StatusSeeOther, h.storeURL+"/payment/success?order="+cb.OrderID)
	case err == nil:
		c.Redirect(http.StatusSeeOther, h.storeURL+"/payment/failed?order="+cb.OrderID)
	case errors.Is(err, usecase.ErrSignatureInvalid),
		errors.Is(err, usecase.ErrCallbackAmountMismatch),
		errors.Is(err, usecase.ErrOrderAlreadyCancelled),
		errors.Is(err, usecase.ErrPaymentStateConflict):
		c.Redirect(http.StatusSeeOther, h.storeURL+"/payment/failed?order="+cb.OrderID)
	default:
		logging.From(c).Error("payment callback failed", "txnid", cb.TxnID, "err", err)
		c.Redirect(http.StatusSeeOther, h.storeURL+"/payment/failed")
	}
}

// Webhook handles the server-to-server notification channel. Unlike
// the browser callback it answers JSON statuses:  2xx acknowledges,
// 4xx tells the provider to stop retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	cb, err := payment.ParseWebhook(body, c.GetHeader("X-Webhook-Signature"))
	if err != nil {
		observ.PaymentCallbacks.WithLabelValues(payment.ProviderWebhook, "mismatch").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	res, err := h.reconcile.HandleCallback(c.Request.Context(), payment.ProviderWebhook, cb)
	h.countOutcome(payment.ProviderWebhook, res, err)

	if res.Order != nil && h.cache != nil {
		_ = h.cache.SetStatus(c.Request.Context(), res.Order.ID, string(res.Order.Status))
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "applied": res.Applied, "duplicate": res.Duplicate})
	case errors.Is(err, usecase.ErrSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
	case errors.Is(err, usecase.ErrCallbackAmountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount mismatch"})
	case errors.Is(err, usecase.ErrOrderAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "order already cancelled"})
	case errors.Is(err, usecase.ErrPaymentStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "payment recorded but order is not pending"})
	case errors.Is(err, usecase.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		logging.From(c).Error("webhook reconcile failed", "txnid", cb.TxnID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *PaymentHandler) countOutcome(provider string, res usecase.ReconcileResult, err error) {
	outcome := "failed"
	switch {
	case err == nil && res.Applied:
		outcome = "applied"
	case err == nil && res.Duplicate:
		outcome = "duplicate"
	case err == nil:
		outcome = "acknowledged"
	case errors.Is(err, usecase.ErrSignatureInvalid):
		outcome = "forged"
	case errors.Is(err, usecase.ErrCallbackAmountMismatch):
		outcome = "mismatch"
	}
	observ.PaymentCallbacks.WithLabelValues(provider, outcome).Inc()
}
