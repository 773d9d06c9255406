package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/labstack/echo/v4"
)

func (s *HTTPServer) verificationError(c echo.Context, err error) error {
	status, code := classify(err, verificationErrors)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "verification request failed", "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.JSON(status, errorBody{Error: msg, ErrorCode: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg, ErrorCode: api.ErrBadRequest})
}

func (s *HTTPServer) postIssue(c echo.Context) error {
	var req api.IssueCodeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}

	var symptomDate *time.Time
	if req.SymptomDate != "" {
		d, err := time.Parse(api.DateFormat, req.SymptomDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "symptomDate must be " + api.DateFormat, ErrorCode: api.ErrInvalidDate})
		}
		symptomDate = &d
	}

	vc, err := s.verification.Issue(c.Request().Context(), req.TestType, symptomDate)
	if err != nil {
		return s.verificationError(c, err)
	}

	return c.JSON(http.StatusOK, api.IssueCodeResponse{
		Code:               vc.Code,
		ExpiresAtTimestamp: vc.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) postVerify(c echo.Context) error {
	var req api.VerifyCodeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return badRequest(c, "code is required")
	}

	v, err := s.verification.Verify(c.Request().Context(), req.Code, req.AcceptTypes)
	if err != nil {
		return s.verificationError(c, err)
	}

	return c.JSON(http.StatusOK, api.VerifyCodeResponse{
		TestType:          v.TestType,
		SymptomDate:       v.SymptomDate,
		VerificationToken: v.Token,
	})
}

func (s *HTTPServer) postCertificate(c echo.Context) error {
	var req api.VerificationCertificateRequest
	if err := c.Bind(&req); err != nil || req.VerificationToken == "" {
		return badRequest(c, "token is required")
	}

	cert, err := s.verification.Certify(c.Request().Context(), req.VerificationToken, req.ExposureKeyHMAC)
	if err != nil {
		return s.verificationError(c, err)
	}

	return c.JSON(http.StatusOK, api.VerificationCertificateResponse{Certificate: cert})
}

func (s *HTTPServer) postPublish(c echo.Context) error {
	var req api.Publish
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, api.PublishResponse{ErrorMessage: "malformed request", Code: api.ErrBadRequest})
	}

	res, err := s.publish.Publish(c.Request().Context(), &req)
	if err != nil {
		status, code := classify(err, publishErrors)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			s.logger.Error(c.Request().Context(), "publish failed", "error", err)
			msg = "internal error"
		}
		return c.JSON(status, api.PublishResponse{ErrorMessage: msg, Code: code})
	}

	return c.JSON(http.StatusOK, api.PublishResponse{
		RevisionToken:     res.RevisionToken,
		InsertedExposures: res.Inserted,
	})
}

func (s *HTTPServer) getHealth(c echo.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable", Error: "database"})
		}
	}
	return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}
