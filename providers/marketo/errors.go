package marketo

import (
	"encoding/json"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-marketo/core"
)

// Marketo API error codes with special handling.
const (
	CodeAccessTokenInvalid = "601"
	CodeAccessTokenExpired = "602"
	CodeAccessDenied       = "603"
	CodeRequestTimeout     = "604"
	CodeRateLimitExceeded  = "606"
	CodeDailyQuotaReached  = "607"
	CodeConcurrentLimit    = "615"
	CodeServiceUnavailable = "608"
	CodeSystemError        = "611"
	CodeLeadNotFound       = "1004"
	CodeFieldNotFound      = "1006"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Message = raw.Message
	e.Code = strings.Trim(strings.TrimSpace(string(raw.Code)), `"`)
	return nil
}

type apiResponse struct {
	RequestID     string          `json:"requestId"`
	Success       bool            `json:"success"`
	Errors        []apiError      `json:"errors"`
	Warnings      []apiError      `json:"warnings"`
	Result        json.RawMessage `json:"result"`
	NextPageToken string          `json:"nextPageToken"`
	MoreResult    bool            `json:"moreResult"`
}

func (r apiResponse) tokenRejected() bool {
	for _, item := range r.Errors {
		if item.Code == CodeAccessTokenInvalid || item.Code == CodeAccessTokenExpired {
			return true
		}
	}
	return false
}

func (c *Client) envelopeError(res apiResponse, fallback string) error {
	code := ""
	message := strings.TrimSpace(fallback)
	if len(res.Errors) > 0 {
		code = res.Errors[0].Code
		message = firstNonEmpty(res.Errors[0].Message, message)
	}
	if message == "" {
		message = "request was not successful"
	}

	category := categoryForCode(code)
	metadata := map[string]any{
		"provider_id": ProviderID,
		"request_id":  res.RequestID,
	}
	if code != "" {
		metadata["marketo_code"] = code
	}
	if len(res.Errors) > 1 {
		metadata["error_count"] = len(res.Errors)
	}
	return goerrors.New("providers/marketo: "+message, category).
		WithCode(core.ServiceHTTPStatus(category)).
		WithTextCode(core.DefaultServiceTextCode(category)).
		WithMetadata(metadata)
}

func categoryForCode(code string) goerrors.Category {
	switch code {
	case CodeAccessTokenInvalid, CodeAccessTokenExpired:
		return goerrors.CategoryAuth
	case CodeAccessDenied:
		return goerrors.CategoryAuthz
	case CodeRateLimitExceeded, CodeDailyQuotaReached, CodeConcurrentLimit:
		return goerrors.CategoryRateLimit
	case CodeRequestTimeout, CodeServiceUnavailable, CodeSystemError:
		return goerrors.CategoryExternal
	case CodeLeadNotFound, CodeFieldNotFound:
		return goerrors.CategoryNotFound
	}
	if value, err := strconv.Atoi(code); err == nil && value >= 1000 && value < 2000 {
		return goerrors.CategoryBadInput
	}
	return goerrors.CategoryExternal
}
