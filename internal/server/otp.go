package server

import (
	"errors"
	"net/http"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/otp"
)

type otpBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
	Type  string `json:"type"`
}

// POST /api/otp/send {email, type}
func (a *api) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	var body otpBody
	if !decodeBody(w, r, &body) {
		return
	}
	_, err := a.OTP.Issue(r.Context(), body.Email, body.Type)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, otp.ErrDelivery):
		writeError(w, http.StatusInternalServerError, "Failed to send email")
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("http.otp.send_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send email")
	}
}

// POST /api/otp/verify {email, otp, type}
func (a *api) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var body otpBody
	if !decodeBody(w, r, &body) {
		return
	}
	err := a.OTP.Verify(r.Context(), body.Email, body.OTP, body.Type)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, otp.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("http.otp.verify_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
