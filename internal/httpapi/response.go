package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/parrisma/gofr-doc/internal/model"
	"github.com/parrisma/gofr-doc/internal/toolcatalog"
)

type responseMessage struct {
	Message string `json:"message"`
}

func httpResponse(w http.ResponseWriter, msg string, code int) {
	v, _ := json.Marshal(responseMessage{Message: msg})
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSON(w http.ResponseWriter, msg any, code int) {
	v, _ := json.Marshal(msg)
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSONByte(w http.ResponseWriter, msg []byte, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(msg)
}

// writeToolResponse maps a toolcatalog.Response onto an HTTP response,
// translating its error_code into the matching status code.
func writeToolResponse(w http.ResponseWriter, resp toolcatalog.Response) {
	if resp.Status == "success" {
		httpResponseJSON(w, resp, http.StatusOK)
		return
	}
	httpResponseJSON(w, resp, statusForKind(resp.ErrorCode))
}

func statusForKind(kind model.Kind) int {
	switch kind {
	case model.KindAuthRequired, model.KindAuthFailed:
		return http.StatusUnauthorized
	case model.KindPermissionDenied:
		return http.StatusForbidden
	case model.KindTemplateNotFound, model.KindFragmentNotFound, model.KindStyleNotFound,
		model.KindSessionNotFound, model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidArguments, model.KindValidationError, model.KindInvalidGlobalParameters,
		model.KindInvalidFragmentParameters, model.KindInvalidPosition, model.KindInvalidAlias,
		model.KindInvalidImageURL, model.KindInvalidImageContentType, model.KindImageValidationError:
		return http.StatusBadRequest
	case model.KindAliasInUse, model.KindGroupMismatch, model.KindInvalidSessionState:
		return http.StatusConflict
	case model.KindSessionNotReady:
		return http.StatusUnprocessableEntity
	case model.KindImageTooLarge, model.KindBlobTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.KindImageURLTimeout:
		return http.StatusGatewayTimeout
	case model.KindImageURLNotAccessible:
		return http.StatusBadGateway
	case model.KindDiskFull:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
