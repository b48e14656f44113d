package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stackmesh/storefront-backend/api/middleware"
	"github.com/stackmesh/storefront-backend/pkg/enums"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
)

func requesterID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func requesterIsAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin)
}
