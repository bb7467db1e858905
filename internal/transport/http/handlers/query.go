package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
	"github.com/Thomblin/heimsight/pkg/response"
)

// QueryHandler serves the SQL-like query endpoint.
type QueryHandler struct {
	service *querylang.Service
	logger  *logrus.Logger
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Execute handles POST /api/v1/query. Parse errors return 400 with
// {line, column, message}; execution results echo the AST.
func (h *QueryHandler) Execute(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err.Error())
		return
	}

	result, err := h.service.Execute(c.Request.Context(), req.Query)
	if err != nil {
		var parseErr *query.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadRequest, response.APIResponse{
				Success: false,
				Data:    parseErr,
				Error: &response.APIError{
					Code:    "QUERY_PARSE_ERROR",
					Message: parseErr.Message,
				},
			})
			return
		}
		h.logger.WithError(err).WithField("query", req.Query).Error("Query execution failed")
		response.InternalServerError(c, "query execution failed")
		return
	}

	response.Success(c, result)
}
