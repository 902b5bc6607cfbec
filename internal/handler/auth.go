package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Login exchanges a username and password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var username, password string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			username, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgMalformed)
		return
	}

	fields := map[string]string{}
	if username == "" {
		fields["username"] = "Username is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		writeAPIError(w, r, apiError{status: http.StatusBadRequest, message: msgValidationFailed, fields: fields})
		return
	}

	s, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		fail(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("token")
	e.Str(s.Token)
	e.FieldStart("tokenType")
	e.Str("Bearer")
	e.FieldStart("userId")
	e.Int64(s.UserID)
	e.FieldStart("expiresAt")
	timestamp(e, s.ExpiresAt)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}
