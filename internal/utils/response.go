package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-venues/internal/apperrors"
	"ms-venues/internal/logger"
)

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ListResponse is the envelope for paginated collections.
type ListResponse struct {
	Success    bool `json:"success"`
	Count      int  `json:"count"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	Data       any  `json:"data"`
}

type ErrorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Param   string         `json:"param,omitempty"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func SuccessResponse(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func MessageResponse(message string) APIResponse {
	return APIResponse{Success: true, Message: message}
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// RespondError maps err onto a status and error envelope. Internal details are
// logged and replaced with a generic message.
func RespondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	body := ErrorBody{Kind: apperrors.KindInternal, Message: "internal server error"}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		body = ErrorBody{Kind: appErr.Kind, Message: appErr.Message, Param: appErr.Param}
	} else if log != nil {
		log.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}

	WriteJSON(w, apperrors.HTTPStatus(body.Kind), ErrorResponse{Success: false, Error: body})
}
