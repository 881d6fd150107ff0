package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgAuth "github.com/mabar/mabar-backend/pkg/auth"
	"github.com/mabar/mabar-backend/pkg/authz"
	pkgerrors "github.com/mabar/mabar-backend/pkg/errors"
	"github.com/mabar/mabar-backend/pkg/logger"
	"github.com/mabar/mabar-backend/pkg/security"
	"github.com/mabar/mabar-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError is the single boundary where internal errors become HTTP
// responses. Authentication failures never disclose their kind.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeRateLimit:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)

		fields := map[string]any{
			"error":       dump.TopMessage,
			"error_code":  dump.Code,
			"http_status": meta.HTTPStatus,
		}
		if kind := pkgAuth.KindOf(err); kind != "" {
			fields["auth_failure"] = string(kind)
		}
		if d, ok := typed.Details().(map[string]any); ok {
			if reason, ok := d["reason"]; ok {
				fields["reason"] = reason
			}
		}

		switch {
		case meta.HTTPStatus >= http.StatusInternalServerError:
			fields["error_chain"] = dump.Chain
			fields["pg_code"] = dump.PGCode
			fields["pg_constraint"] = dump.PGConstraint
			fields["pg_message"] = dump.PGMessage
			logg.Error(logg.WithFields(ctx, fields), "request.error", err)
		case meta.Audit:
			logg.Security(ctx, "request.denied", fields)
		default:
			logg.Info(logg.WithFields(ctx, fields), "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// classify maps domain errors from the auth packages onto typed API errors.
func classify(err error) *pkgerrors.Error {
	var authErr *pkgAuth.AuthError
	if errors.As(err, &authErr) && pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, pkgerrors.MetadataFor(pkgerrors.CodeUnauthorized).PublicMessage)
	}

	if errors.Is(err, authz.ErrNoRole) && pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeRoleRequired, err, "")
	}
	if errors.Is(err, authz.ErrForbidden) && pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "insufficient permissions")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		var policyErr *security.PolicyError
		if errors.As(err, &policyErr) {
			return weakPassword(err, policyErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	if typed.Code() == pkgerrors.CodeValidation && typed.Details() == nil {
		var policyErr *security.PolicyError
		if errors.As(err, &policyErr) {
			return weakPassword(err, policyErr)
		}
	}
	return typed
}

func weakPassword(err error, policyErr *security.PolicyError) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, policyErr.Error()).
		WithDetails(map[string]any{"violation": string(policyErr.Violation)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
