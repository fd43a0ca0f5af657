package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cobranzas/internal/core"
)

// MovementRow is a movement formatted for display.
type MovementRow struct {
	ID            int64
	Type          core.MovementType
	Description   string
	PaymentMethod string
	Amount        string
	CreatedAt     string
}

// MovementsViewModel backs the list-and-create page.
type MovementsViewModel struct {
	Username  string
	Movements []MovementRow
	Form      MovementForm
	Error     string
	Flash     string
}

// MovementForm echoes submitted values back into the form on a
// validation failure so the user does not retype everything.
type MovementForm struct {
	Type          string
	Description   string
	PaymentMethod string
	Amount        string
}

// MovementEditViewModel backs the edit page.
type MovementEditViewModel struct {
	ID    int64
	Form  MovementForm
	Error string
}

func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.movementsPage(w, r, MovementForm{}, "")
	case http.MethodPost:
		s.movementCreate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) movementsPage(w http.ResponseWriter, r *http.Request, form MovementForm, formError string) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	movements, err := s.movements.List(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list movements", "user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]MovementRow, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, MovementRow{
			ID:            m.ID,
			Type:          m.Type,
			Description:   m.Description,
			PaymentMethod: m.PaymentMethod,
			Amount:        core.FormatGuarani(m.Amount),
			CreatedAt:     m.CreatedAt.Local().Format("02/01/2006 15:04"),
		})
	}

	s.render(w, r, "movements.html", MovementsViewModel{
		Username:  user.Username,
		Movements: rows,
		Form:      form,
		Error:     formError,
		Flash:     s.popFlash(w, r),
	})
}

// parseMovementForm turns submitted fields into a movement. Amounts
// accept the local "1.500,75" style; anything unparsable becomes zero
// and is rejected by validation as a non-positive amount.
func parseMovementForm(r *http.Request) (core.Movement, MovementForm) {
	form := MovementForm{
		Type:          sanitizeInput(r.FormValue("type")),
		Description:   sanitizeInput(r.FormValue("description")),
		PaymentMethod: sanitizeInput(r.FormValue("payment_method")),
		Amount:        sanitizeInput(r.FormValue("amount")),
	}
	return core.Movement{
		Type:          core.MovementType(form.Type),
		Description:   form.Description,
		PaymentMethod: form.PaymentMethod,
		Amount:        core.ParseAmount(form.Amount),
	}, form
}

func (s *Server) movementCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	movement, form := parseMovementForm(r)
	if _, err := s.movements.Create(r.Context(), user.ID, movement); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.movementsPage(w, r, form, verr.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Failed to create movement", "user_id", user.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.setFlash(w, "Movement recorded")
	http.Redirect(w, r, "/movements", http.StatusFound)
}

func (s *Server) handleMovementEditForm(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	movement, err := s.movements.Get(r.Context(), user.ID, id)
	if err != nil {
		// A missing id and a foreign-owned id look the same on purpose.
		s.setFlash(w, "Movement not found")
		http.Redirect(w, r, "/movements", http.StatusFound)
		return
	}

	s.render(w, r, "movement_edit.html", MovementEditViewModel{
		ID: movement.ID,
		Form: MovementForm{
			Type:          string(movement.Type),
			Description:   movement.Description,
			PaymentMethod: movement.PaymentMethod,
			Amount:        core.FormatAmountInput(movement.Amount),
		},
	})
}

func (s *Server) handleMovementEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	movement, form := parseMovementForm(r)
	changed, err := s.movements.Update(r.Context(), user.ID, id, movement)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.render(w, r, "movement_edit.html", MovementEditViewModel{
				ID:    id,
				Form:  form,
				Error: verr.Error(),
			})
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update movement", "user_id", user.ID, "movement_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !changed {
		s.setFlash(w, "Movement not found")
	} else {
		s.setFlash(w, "Movement updated")
	}
	http.Redirect(w, r, "/movements", http.StatusFound)
}

func (s *Server) handleMovementDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	removed, err := s.movements.Delete(r.Context(), user.ID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete movement", "user_id", user.ID, "movement_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !removed {
		s.setFlash(w, "Movement not found")
	} else {
		s.setFlash(w, "Movement deleted")
	}
	http.Redirect(w, r, "/movements", http.StatusFound)
}
