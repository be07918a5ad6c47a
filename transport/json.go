package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
)

const maxErrorBodyPreview = 512

// DoJSON sends body as JSON (when non-nil), checks the response status and
// decodes the payload into out (when non-nil). The raw response is returned
// alongside any status error.
func DoJSON(
	ctx context.Context,
	adapter core.TransportAdapter,
	req core.TransportRequest,
	body any,
	out any,
) (core.TransportResponse, error) {
	if adapter == nil {
		return core.TransportResponse{}, transportError(
			"transport: adapter is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}

	headers := make(map[string]string, len(req.Headers)+2)
	headers["Accept"] = "application/json"
	for key, value := range req.Headers {
		headers[key] = value
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.TransportResponse{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode json body",
				http.StatusBadRequest,
				nil,
			)
		}
		req.Body = encoded
		headers["Content-Type"] = "application/json"
	}
	req.Headers = headers

	res, err := adapter.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if err := StatusError(res); err != nil {
		return res, err
	}
	if out == nil || len(res.Body) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return res, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode json response",
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	return res, nil
}

// StatusError returns nil for 2xx responses and a categorized error otherwise.
func StatusError(res core.TransportResponse) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	category := StatusCategory(res.StatusCode)
	metadata := map[string]any{
		"adapter":     KindREST,
		"status_code": res.StatusCode,
	}
	if preview := bodyPreview(res.Body); preview != "" {
		metadata["body"] = preview
	}
	return transportError(
		"transport: unexpected response status "+http.StatusText(res.StatusCode),
		category,
		res.StatusCode,
		metadata,
	)
}

func StatusCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 400 && status < 500:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryExternal
	}
}

func bodyPreview(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyPreview {
		text = text[:maxErrorBodyPreview]
	}
	return text
}
