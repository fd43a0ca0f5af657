package http

import (
	"log/slog"
	"net/http"

	"cobranzas/internal/core"
)

// DashboardViewModel holds the formatted totals for the dashboard page.
type DashboardViewModel struct {
	Username      string
	TotalIncome   string
	TotalExpenses string
	Balance       string
	Flash         string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	totals, err := s.movements.Totals(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to compute totals", "user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "dashboard.html", DashboardViewModel{
		Username:      user.Username,
		TotalIncome:   core.FormatGuarani(totals.TotalIncome),
		TotalExpenses: core.FormatGuarani(totals.TotalExpense),
		Balance:       core.FormatGuarani(totals.Balance),
		Flash:         s.popFlash(w, r),
	})
}
