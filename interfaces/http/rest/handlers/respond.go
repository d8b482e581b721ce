package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindmap-backend/pkg/common"
	pkgerrors "mindmap-backend/pkg/errors"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 1 << 20

type base struct {
	logger       *zap.Logger
	maxBodyBytes int64
}

func newBase(logger *zap.Logger, maxBodyBytes int64) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return base{logger: logger, maxBodyBytes: maxBodyBytes}
}

func (b base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v, b.maxBodyBytes); err != nil {
		b.fail(w, r, err)
		return false
	}
	return true
}

func (b base) ok(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := common.ExtractRequestID(r)
	if requestID == "" {
		common.RespondJSON(w, status, data)
		return
	}
	common.RespondWithMeta(w, status, data, &common.MetaInfo{RequestID: requestID, Version: "v1"})
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	if pkgerrors.HTTPStatus(err) >= http.StatusInternalServerError {
		b.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", common.ExtractRequestID(r)),
			zap.Error(err),
		)
	}
	common.RespondAppError(w, err)
}
