package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/lookup"
	"github.com/jmehdipour/imei-gateway/internal/model"
)

// Checker is the lookup pipeline as seen by the transport.
type Checker interface {
	Check(ctx context.Context, raw, client string, cfg model.ProviderConfig) (model.Envelope, error)
}

type checkReq struct {
	IMEI imeiParam `json:"imei" form:"imei"`
}

// imeiParam accepts the IMEI as a JSON string or a bare JSON number; digits
// are kept exactly as sent.
type imeiParam string

func (p *imeiParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = imeiParam(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("imei must be a string or a number")
		}
		*p = imeiParam(n.String())
	}
	return nil
}

// UnmarshalParam serves form and query binding.
func (p *imeiParam) UnmarshalParam(v string) error {
	*p = imeiParam(v)
	return nil
}

type errorData struct {
	Status int `json:"status"`
}

type errorResp struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

func errorJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorResp{Code: code, Message: msg, Data: errorData{Status: status}})
}

func checkIMEIHandler(checker Checker, creds model.ProviderConfig, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req checkReq
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "bad_request", "bad request")
		}

		env, err := checker.Check(c.Request().Context(), string(req.IMEI), c.RealIP(), creds)
		if err != nil {
			var cerr *lookup.CheckError
			if errors.As(err, &cerr) {
				return errorJSON(c, cerr.HTTPStatus(), cerr.Code, cerr.Message())
			}

			log.Error("check failed", zap.Error(err))

			return errorJSON(c, http.StatusInternalServerError, "internal_error", "internal error")
		}

		return c.JSON(http.StatusOK, env)
	}
}
