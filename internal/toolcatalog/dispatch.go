package toolcatalog

import (
	"context"
	"fmt"

	"github.com/parrisma/gofr-doc/internal/authsvc"
	"github.com/parrisma/gofr-doc/internal/model"
)

// Response is the uniform {status, ...} shape spec.md §4.7 requires for
// every tool/REST response.
type Response struct {
	Status           string         `json:"status"`
	Data             any            `json:"data,omitempty"`
	ErrorCode        model.Kind     `json:"error_code,omitempty"`
	Message          string         `json:"message,omitempty"`
	RecoveryStrategy string         `json:"recovery_strategy,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// Dispatcher binds a Catalogue to the auth service and runs the five-step
// protocol from spec.md §4.7 for every call.
type Dispatcher struct {
	catalogue *Catalogue
	auth      *authsvc.Service
}

func NewDispatcher(catalogue *Catalogue, auth *authsvc.Service) *Dispatcher {
	return &Dispatcher{catalogue: catalogue, auth: auth}
}

// Call resolves auth, injects group, invokes the handler, and shapes the
// result uniformly. authHeader is the raw "Authorization" header value
// ("" if absent); args may be nil.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any, authHeader string) Response {
	spec, handler, ok := d.catalogue.lookup(name)
	if !ok {
		return errorResponse(model.NewError(model.KindNotFound, fmt.Sprintf("unknown tool %q", name), "call tools/list for the current catalogue", nil))
	}

	if args == nil {
		args = map[string]any{}
	}

	info, err := d.auth.Resolve(ctx, args, authHeader, spec.RequiresAuth)
	if err != nil {
		return errorResponse(model.AsDomainError(err))
	}

	if info.Group != "" {
		args["group"] = info.Group
	}

	result, err := handler(ctx, info.Group, args)
	if err != nil {
		return errorResponse(model.AsDomainError(err))
	}

	return Response{Status: "success", Data: result}
}

func errorResponse(de *model.DomainError) Response {
	return Response{
		Status:           "error",
		ErrorCode:        de.Kind,
		Message:          de.Message,
		RecoveryStrategy: de.RecoveryStrategy,
		Details:          de.Details,
	}
}
