package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/furnishop/pkg/httputil"
	"github.com/utafrali/furnishop/pkg/validator"
)

// writeDecodeError answers a failed DecodeAndValidate: field errors keep their
// map, anything else means the body was not valid JSON.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, logger)
		return
	}
	httputil.WriteBadRequest(w, "invalid request body")
}
