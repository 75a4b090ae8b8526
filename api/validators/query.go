package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

// upper bound for ids taken from the path: cart item ids, PayPal order ids
const maxPathParamLen = 128

// ParseQueryInt reads an optional integer query parameter bounded by
// [min, max]. An absent parameter yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a number").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// PathParam returns the trimmed chi URL parameter, rejecting blank or
// oversized values.
func PathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	switch {
	case value == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required").WithDetails(map[string]any{"field": name})
	case len(value) > maxPathParamLen:
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is too long").WithDetails(map[string]any{"field": name, "max": maxPathParamLen})
	}
	return value, nil
}
