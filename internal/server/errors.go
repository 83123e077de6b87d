package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/engine"
	"github.com/roach88/chainledger/internal/store"
)

const kindNotFound = "NOT_FOUND"

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) (int, string) {
	if store.IsNotFound(err) {
		return http.StatusNotFound, kindNotFound
	}
	var ee *engine.Error
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError, "INTERNAL"
	}
	switch ee.Kind {
	case engine.KindValidation, engine.KindModuleHook:
		return http.StatusBadRequest, string(ee.Kind)
	case engine.KindAccessControl:
		if !engine.IsAccessDenied(err) {
			return http.StatusServiceUnavailable, string(ee.Kind)
		}
		return http.StatusForbidden, string(ee.Kind)
	case engine.KindConfiguration:
		return http.StatusConflict, string(ee.Kind)
	default:
		return http.StatusInternalServerError, string(ee.Kind)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorDetail{Kind: string(engine.KindValidation), Message: msg}})
}

func notFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: errorDetail{Kind: kindNotFound, Message: msg}})
}
