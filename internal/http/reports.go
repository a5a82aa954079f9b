package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/imei"
	"github.com/jmehdipour/imei-gateway/internal/model"
	"github.com/jmehdipour/imei-gateway/internal/repository"
)

func listLookupsHandler(chRepo repository.CHLookupsRepository, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := repository.LookupFilter{Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}

		if raw := strings.TrimSpace(c.QueryParam("outcome")); raw != "" {
			o := model.Outcome(raw)
			if !o.Valid() {
				return errorJSON(c, http.StatusBadRequest, "invalid_outcome", "unknown outcome "+strconv.Quote(raw))
			}
			f.Outcome = o
		}

		f.IMEI = imei.Digits(c.QueryParam("imei"))

		rows, err := chRepo.List(c.Request().Context(), f)
		if err != nil {
			log.Error("clickhouse list failed", zap.Error(err))

			return errorJSON(c, http.StatusInternalServerError, "query_failed", "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
