package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/steer/internal/inference"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

// writeRequestError reports err as a 400, carrying its param and code when
// it is a requestError.
func writeRequestError(c *echo.Context, err error) error {
	var re requestError
	if errors.As(err, &re) {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", re.msg, re.param, re.code)
	}
	return writeBadRequest(c, err.Error())
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// options validates the sampling fields of req and maps them onto
// inference.Options.
func (req *GenerateRequest) options(vocab int) (inference.Options, error) {
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return inference.Options{}, newInvalidRequest("max_tokens", "max_tokens must be positive")
	}
	if req.Temperature != nil && *req.Temperature < 0 {
		return inference.Options{}, newInvalidRequest("temperature", "temperature must be non-negative")
	}
	if req.TopP != nil && (*req.TopP <= 0 || *req.TopP > 1) {
		return inference.Options{}, newInvalidRequest("top_p", "top_p must be in (0, 1]")
	}
	for _, id := range req.StopTokens {
		if id < 0 || id >= vocab {
			return inference.Options{}, newInvalidRequest("stop_tokens", fmt.Sprintf("stop token %d out of range", id))
		}
	}
	return inference.Options{
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		MinP:          req.MinP,
		StopTokens:    req.StopTokens,
		MaxIterations: req.MaxIterations,
	}, nil
}
