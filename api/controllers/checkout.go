package controllers

import (
	"net/http"

	"github.com/stackmesh/storefront-backend/api/responses"
	checkoutsvc "github.com/stackmesh/storefront-backend/internal/checkout"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
	"github.com/stackmesh/storefront-backend/pkg/logger"
)

// Checkout converts the requester's cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
