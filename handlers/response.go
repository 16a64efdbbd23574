package handlers

import (
	"CareChain/middlewares"
	"CareChain/services"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:            http.StatusBadRequest,
	services.KindForbidden:             http.StatusForbidden,
	services.KindNotFound:              http.StatusNotFound,
	services.KindSchedulingConflict:    http.StatusConflict,
	services.KindInvalidTransition:     http.StatusConflict,
	services.KindConflictingUpdate:     http.StatusConflict,
	services.KindAlreadyCompleted:      http.StatusConflict,
	services.KindNoQualifiedTechnician: http.StatusUnprocessableEntity,
}

// respondError writes err as an error envelope. Internal errors are logged
// and replaced by a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		if status, ok := statusByKind[svcErr.Kind]; ok {
			middlewares.HttpError(c, status, string(svcErr.Kind), svcErr.Message, svcErr.Details)
			return
		}
	}

	_ = c.Error(err)
	log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	middlewares.HttpError(c, http.StatusInternalServerError, string(services.KindInternal), "internal server error", nil)
}

func badRequest(c *gin.Context, message string) {
	middlewares.HttpError(c, http.StatusBadRequest, string(services.KindValidation), message, nil)
}

// caller returns the authenticated caller or aborts with 401.
func caller(c *gin.Context) (services.Caller, bool) {
	who, ok := middlewares.CallerFromContext(c)
	if !ok {
		middlewares.HttpError(c, http.StatusUnauthorized, "Unauthorized", "authentication required", nil)
	}
	return who, ok
}
