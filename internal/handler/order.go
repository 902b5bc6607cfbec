package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/digigoods/internal/domain/checkout"
)

// IdempotencyKeyHeader optionally identifies a checkout attempt.
const IdempotencyKeyHeader = "Idempotency-Key"

// Checkout places an order for the authenticated user.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var (
		req       checkout.Request
		hasUserID bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.UserID, err = d.Int64()
			hasUserID = err == nil
		case "productIds":
			req.ProductIDs, err = strArr(d)
		case "discountCodes":
			req.DiscountCodes, err = strArr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgMalformed)
		return
	}
	if !hasUserID {
		writeAPIError(w, r, apiError{
			status:  http.StatusBadRequest,
			message: msgValidationFailed,
			fields:  map[string]string{"userId": "User ID is required"},
		})
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	res, err := h.checkout.ProcessCheckout(r.Context(), req, principal(r))
	if err != nil {
		fail(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("message")
	e.Str(res.Message)
	e.FieldStart("finalPrice")
	money(e, res.FinalPrice)
	e.FieldStart("orderId")
	e.Str(res.OrderID)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// ListOrders returns the authenticated user's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		fail(w, r, errors.Wrap(err, "list orders"))
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(e, o)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}
