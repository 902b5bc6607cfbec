package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// writeError writes the error body shared with the API handlers.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(time.RFC3339))
	e.FieldStart("status")
	e.Int(status)
	e.FieldStart("error")
	e.Str(http.StatusText(status))
	e.FieldStart("message")
	e.Str(message)
	e.FieldStart("path")
	e.Str(r.URL.Path)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
