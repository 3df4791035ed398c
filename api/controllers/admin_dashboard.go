package controllers

import (
	"net/http"

	"github.com/omarvaldez/threadline-backend/api/responses"
	"github.com/omarvaldez/threadline-backend/internal/dashboard"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
)

// AdminDashboard serves the staff overview: headline counters, revenue,
// recent orders, and listings running low on stock.
func AdminDashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
