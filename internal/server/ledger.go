package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

type listEntriesQuery struct {
	pagination.Pagination
	AccountNumber string `form:"account_number"`
	VoucherGUID   string `form:"voucher_guid"`
	From          string `form:"from"`
	To            string `form:"to"`
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var query listEntriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := ledgerdomain.ListEntriesRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		VoucherGUID: strings.TrimSpace(query.VoucherGUID),
	}
	if req.AccountNumber, err = parseOptionalInt64(query.AccountNumber); err != nil {
		AbortWithError(c, newValidationError("account_number", "invalid_account_number", "invalid account_number"))
		return
	}
	if req.From, err = parseOptionalDate(query.From); err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be YYYY-MM-DD"))
		return
	}
	if req.To, err = parseOptionalDate(query.To); err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be YYYY-MM-DD"))
		return
	}

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), org, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Entries, "page_info": resp.PageInfo})
}

// TrialBalance defaults to the current calendar year to date.
func (s *Server) TrialBalance(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	today := clock.Date(s.clock.Now())
	from := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := today
	if parsed, err := parseOptionalDate(c.Query("from")); err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be YYYY-MM-DD"))
		return
	} else if parsed != nil {
		from = *parsed
	}
	if parsed, err := parseOptionalDate(c.Query("to")); err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be YYYY-MM-DD"))
		return
	} else if parsed != nil {
		to = *parsed
	}

	balances, err := s.ledgerSvc.TrialBalance(c.Request.Context(), org, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": balances,
		"from": from.Format(dateOnlyLayout),
		"to":   to.Format(dateOnlyLayout),
	})
}
