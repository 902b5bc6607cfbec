package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

const (
	msgUnauthorized     = "JWT token is missing or invalid"
	msgMalformed        = "Malformed request body"
	msgInternal         = "An unexpected error occurred"
	msgValidationFailed = "Validation failed"
	msgForbidden        = "You can only access your own resources"
)

// apiError is the body of every error response.
type apiError struct {
	status  int
	message string
	fields  map[string]string
}

// statusOf maps a domain error to its HTTP status and client message.
func statusOf(err error) (int, string) {
	var (
		unauthorized *checkout.UnauthorizedAccessError
		stock        *product.InsufficientStockError
		expired      *discount.ExpiredError
		exhausted    *discount.ExhaustedError
		excessive    *pricing.ExcessiveDiscountError
		productNF    *product.NotFoundError
		discountNF   *discount.NotFoundError
		userNF       *user.NotFoundError
	)
	switch {
	case errors.As(err, &unauthorized):
		return http.StatusForbidden, "You can only checkout for yourself"
	case errors.As(err, &productNF):
		return http.StatusNotFound, "Product not found: " + productNF.ProductID
	case errors.As(err, &discountNF):
		return http.StatusNotFound, "Discount code not found: " + discountNF.Code
	case errors.As(err, &userNF):
		return http.StatusNotFound, userNF.Error()
	case errors.As(err, &stock):
		return http.StatusConflict, "Insufficient stock for product: " + stock.ProductID
	case errors.As(err, &exhausted):
		return http.StatusConflict, "Discount code has reached its usage limit: " + exhausted.Code
	case errors.As(err, &expired):
		return http.StatusBadRequest, "Discount code is not valid at this time: " + expired.Code
	case errors.As(err, &excessive):
		return http.StatusBadRequest, "Discount exceeds the maximum allowed percentage: " + excessive.Code
	case errors.Is(err, checkout.ErrDuplicateRequest):
		return http.StatusConflict, "A checkout with this Idempotency-Key was already submitted"
	case errors.Is(err, checkout.ErrEmptyProducts):
		return http.StatusBadRequest, "At least one product is required"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// fail writes the response for err, logging unexpected failures.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeAPIError(w, r, apiError{status: status, message: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeAPIError(w, r, apiError{status: status, message: message})
}

func writeAPIError(w http.ResponseWriter, r *http.Request, e apiError) {
	enc := jx.GetEncoder()
	defer jx.PutEncoder(enc)

	enc.ObjStart()
	enc.FieldStart("timestamp")
	enc.Str(time.Now().UTC().Format(time.RFC3339))
	enc.FieldStart("status")
	enc.Int(e.status)
	enc.FieldStart("error")
	enc.Str(http.StatusText(e.status))
	enc.FieldStart("message")
	enc.Str(e.message)
	enc.FieldStart("path")
	enc.Str(r.URL.Path)
	if len(e.fields) > 0 {
		enc.FieldStart("errors")
		enc.ObjStart()
		for _, name := range sortedKeys(e.fields) {
			enc.FieldStart(name)
			enc.Str(e.fields[name])
		}
		enc.ObjEnd()
	}
	enc.ObjEnd()

	writeJSON(w, e.status, enc.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
