package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
)

type lockPeriodRequest struct {
	LockedUntil string `json:"locked_until"`
}

type createYearRequest struct {
	Year      int     `json:"year"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func yearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Param("year")))
	if err != nil || year <= 0 {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return 0, false
	}
	return year, true
}

// LockPeriod locks every date of the year up to and including locked_until.
func (s *Server) LockPeriod(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, ok := yearParam(c)
	if !ok {
		return
	}
	var req lockPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	lockedUntil, err := parseDate(req.LockedUntil)
	if err != nil {
		AbortWithError(c, newValidationError("locked_until", "invalid_locked_until", "locked_until must be YYYY-MM-DD"))
		return
	}

	result, err := s.periodSvc.LockPeriod(c.Request.Context(), org, year, lockedUntil)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UnlockPeriod(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, ok := yearParam(c)
	if !ok {
		return
	}

	result, err := s.periodSvc.UnlockPeriod(c.Request.Context(), org, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CloseYear(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, ok := yearParam(c)
	if !ok {
		return
	}

	result, err := s.periodSvc.CloseYear(c.Request.Context(), org, year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CreateYear(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req createYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	startDate, err := parseOptionalDatePtr(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "start_date must be YYYY-MM-DD"))
		return
	}
	endDate, err := parseOptionalDatePtr(req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "end_date must be YYYY-MM-DD"))
		return
	}

	result, err := s.periodSvc.CreateYear(c.Request.Context(), org, perioddomain.CreateYearRequest{
		Year:      req.Year,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListYears(c *gin.Context) {
	org, err := orgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	years, err := s.periodSvc.ListYears(c.Request.Context(), org)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": years})
}
