package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/digigoods/internal/domain/user"
)

var profileFields = map[string]string{
	"Email":       "email",
	"FirstName":   "firstName",
	"LastName":    "lastName",
	"PhoneNumber": "phoneNumber",
}

// ownUserID parses the {userId} path value and checks it names the caller.
// It writes the error response and returns false otherwise.
func ownUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	if id != principal(r) {
		writeError(w, r, http.StatusForbidden, msgForbidden)
		return 0, false
	}
	return id, true
}

// GetProfile returns the caller's profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := ownUserID(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeProfile(w, p)
}

// UpdateProfile replaces the editable fields of the caller's profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := ownUserID(w, r)
	if !ok {
		return
	}

	var upd user.ProfileUpdate
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			upd.Email, err = optStr(d)
		case "firstName":
			upd.FirstName, err = optStr(d)
		case "lastName":
			upd.LastName, err = optStr(d)
		case "phoneNumber":
			upd.PhoneNumber, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgMalformed)
		return
	}

	p, err := h.profiles.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		var verr *user.ValidationError
		if errors.As(err, &verr) {
			fields := make(map[string]string, len(verr.Fields))
			for name, msg := range verr.Fields {
				fields[profileFields[name]] = msg
			}
			writeAPIError(w, r, apiError{status: http.StatusBadRequest, message: msgValidationFailed, fields: fields})
			return
		}
		fail(w, r, err)
		return
	}
	writeProfile(w, p)
}

func writeProfile(w http.ResponseWriter, p *user.Profile) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeProfile(e, p)
	writeJSON(w, http.StatusOK, e.Bytes())
}
