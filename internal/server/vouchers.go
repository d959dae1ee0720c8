package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/pagination"
)

type voucherRequest struct {
	DocumentDate      string                      `json:"document_date"`
	Currency          string                      `json:"currency"`
	Description       *string                     `json:"description"`
	ExternalReference *string                     `json:"external_reference"`
	ContactGUID       *string                     `json:"contact_guid"`
	DueDate           *string                     `json:"due_date"`
	Lines             []voucherdomain.LineRequest `json:"lines"`
}

func (r voucherRequest) toDomain() (voucherdomain.DraftRequest, error) {
	documentDate, err := parseDate(r.DocumentDate)
	if err != nil {
		return voucherdomain.DraftRequest{}, newValidationError("document_date", "invalid_document_date", "document_date must be YYYY-MM-DD")
	}
	dueDate, err := parseOptionalDatePtr(r.DueDate)
	if err != nil {
		return voucherdomain.DraftRequest{}, newValidationError("due_date", "invalid_due_date", "due_date must be YYYY-MM-DD")
	}
	return voucherdomain.DraftRequest{
		DocumentDate:      documentDate,
		Currency:          r.Currency,
		Description:       r.Description,
		ExternalReference: r.ExternalReference,
		ContactGUID:       r.ContactGUID,
		DueDate:           dueDate,
		Lines:             r.Lines,
	}, nil
}

type paymentStatusRequest struct {
	Status string `json:"status"`
}

type reverseRequest struct {
	DocumentDate *string `json:"document_date"`
	Description  *string `json:"description"`
}

type listVouchersQuery struct {
	pagination.Pagination
	DocumentClass string `form:"document_class"`
	Status        string `form:"status"`
	From          string `form:"from"`
	To            string `form:"to"`
}

func bindVoucherRequest(c *gin.Context) (voucherdomain.DraftRequest, bool) {
	var req voucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return voucherdomain.DraftRequest{}, false
	}
	draft, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return voucherdomain.DraftRequest{}, false
	}
	return draft, true
}

func documentClassParam(c *gin.Context) (voucherdomain.DocumentClass, bool) {
	class, ok := voucherdomain.ParseDocumentClass(c.Param("id"))
	if !ok {
		AbortWithError(c, newValidationError("document_class", "invalid_document_class", "unknown document class"))
		return "", false
	}
	return class, true
}

// PostVoucher validates, numbers and books a voucher in one call.
func (s *Server) PostVoucher(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	class, ok := documentClassParam(c)
	if !ok {
		return
	}
	req, ok := bindVoucherRequest(c)
	if !ok {
		return
	}

	result, err := s.voucherSvc.Post(c.Request.Context(), org, class, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) SaveDraft(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	class, ok := documentClassParam(c)
	if !ok {
		return
	}
	req, ok := bindVoucherRequest(c)
	if !ok {
		return
	}

	draft, err := s.voucherSvc.SaveDraft(c.Request.Context(), org, class, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": draft})
}

func (s *Server) UpdateDraft(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req, ok := bindVoucherRequest(c)
	if !ok {
		return
	}

	draft, err := s.voucherSvc.UpdateDraft(c.Request.Context(), org, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

func (s *Server) DeleteDraft(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.voucherSvc.DeleteDraft(c.Request.Context(), org, strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) BookDraft(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := s.voucherSvc.BookDraft(c.Request.Context(), org, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UpdatePaymentStatus(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := voucherdomain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	v, err := s.voucherSvc.UpdatePaymentStatus(c.Request.Context(), org, strings.TrimSpace(c.Param("id")), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

// ReverseVoucher books a credit note cancelling the voucher.
func (s *Server) ReverseVoucher(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reverseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	documentDate, err := parseOptionalDatePtr(req.DocumentDate)
	if err != nil {
		AbortWithError(c, newValidationError("document_date", "invalid_document_date", "document_date must be YYYY-MM-DD"))
		return
	}

	result, err := s.voucherSvc.Reverse(c.Request.Context(), org, strings.TrimSpace(c.Param("id")), voucherdomain.ReverseRequest{
		DocumentDate: documentDate,
		Description:  req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) GetVoucher(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	v, err := s.voucherSvc.Get(c.Request.Context(), org, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (s *Server) ListVouchers(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var query listVouchersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := voucherdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	}
	if raw := strings.TrimSpace(query.DocumentClass); raw != "" {
		class, ok := voucherdomain.ParseDocumentClass(raw)
		if !ok {
			AbortWithError(c, newValidationError("document_class", "invalid_document_class", "unknown document class"))
			return
		}
		req.DocumentClass = class
	}
	req.Status = voucherdomain.Status(strings.ToLower(strings.TrimSpace(query.Status)))
	if req.From, err = parseOptionalDate(query.From); err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be YYYY-MM-DD"))
		return
	}
	if req.To, err = parseOptionalDate(query.To); err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be YYYY-MM-DD"))
		return
	}

	resp, err := s.voucherSvc.List(c.Request.Context(), org, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Vouchers, "page_info": resp.PageInfo})
}
