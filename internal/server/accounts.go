package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
)

func (s *Server) ListAccounts(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	isActive, err := parseOptionalBool(c.Query("is_active"))
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}

	accounts, err := s.accountSvc.List(c.Request.Context(), org, accountdomain.ListRequest{IsActive: isActive})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

func (s *Server) CreateAccount(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), org, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) DeactivateAccount(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	number, err := strconv.ParseInt(strings.TrimSpace(c.Param("number")), 10, 64)
	if err != nil || number <= 0 {
		AbortWithError(c, newValidationError("number", "invalid_account_number", "invalid account number"))
		return
	}

	if err := s.accountSvc.Deactivate(c.Request.Context(), org, number); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListVatTypes(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	isEnabled, err := parseOptionalBool(c.Query("is_enabled"))
	if err != nil {
		AbortWithError(c, newValidationError("is_enabled", "invalid_is_enabled", "invalid is_enabled"))
		return
	}

	items, err := s.vatSvc.List(c.Request.Context(), org, vatdomain.ListRequest{IsEnabled: isEnabled})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateVatType(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req vatdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.vatSvc.Create(c.Request.Context(), org, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateVatType(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req vatdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.vatSvc.Update(c.Request.Context(), org, strings.TrimSpace(c.Param("code")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
