package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Table     string `form:"table"`
	Operation string `form:"operation"`
}

// AuditTrail returns the change history of one record, oldest first.
func (s *Server) AuditTrail(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.auditSvc.Trail(c.Request.Context(), org, strings.TrimSpace(c.Param("table")), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), org, auditdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		TableName: strings.TrimSpace(query.Table),
		Operation: strings.ToUpper(strings.TrimSpace(query.Operation)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}
