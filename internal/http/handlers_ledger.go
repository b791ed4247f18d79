package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"budget/internal/core"
)

// ---- recurring charges ----

func chargeFromBody(p *RequestBodyParser, ownerID string) (core.RecurringCharge, error) {
	amount, err := p.Amount("amount")
	if err != nil {
		return core.RecurringCharge{}, err
	}
	return core.RecurringCharge{
		OwnerID:       ownerID,
		Name:          p.Get("name"),
		Amount:        amount,
		Frequency:     core.Frequency(p.Get("frequency")),
		BeneficiaryID: p.Get("beneficiary_id"),
		IsShared:      p.Bool("is_shared"),
	}, nil
}

func (s *Server) handleListCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := s.svc.Ledger.ListCharges(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		out = append(out, newChargeResponse(c))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateCharge(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	c, err := chargeFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err = s.svc.Ledger.CreateCharge(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newChargeResponse(c)).Write(w)
}

func (s *Server) handleUpdateCharge(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	c, err := chargeFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.ID = chi.URLParam(r, "id")
	c, err = s.svc.Ledger.UpdateCharge(r.Context(), userID(r), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newChargeResponse(c)).Write(w)
}

func (s *Server) handleDeleteCharge(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.DeleteCharge(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// ---- savings contributions ----

func savingsFromBody(p *RequestBodyParser, ownerID string) (core.SavingsContribution, error) {
	amount, err := p.Amount("amount")
	if err != nil {
		return core.SavingsContribution{}, err
	}
	start, err := p.Date("start_date")
	if err != nil {
		return core.SavingsContribution{}, err
	}
	return core.SavingsContribution{
		OwnerID:       ownerID,
		Name:          p.Get("name"),
		Amount:        amount,
		Frequency:     core.Frequency(p.Get("frequency")),
		StartDate:     start,
		BeneficiaryID: p.Get("beneficiary_id"),
		IsShared:      p.Bool("is_shared"),
	}, nil
}

// handleListSavings returns visible contributions with their cumulative
// totals at ?date= (today by default).
func (s *Server) handleListSavings(w http.ResponseWriter, r *http.Request) {
	asOf, err := ParseAsOf(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Ledger.ListSavings(r.Context(), userID(r), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(savingsListResponse{
		AsOf:          report.AsOf.String(),
		Contributions: newSavingsProgressResponses(report.Progress),
		MonthlyTotal:  money(report.MonthlyTotal),
		SavedTotal:    money(report.SavedTotal),
	}).Write(w)
}

func (s *Server) handleCreateSavings(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sv, err := savingsFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sv, err = s.svc.Ledger.CreateSavings(r.Context(), sv)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newSavingsResponse(sv)).Write(w)
}

func (s *Server) handleUpdateSavings(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sv, err := savingsFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sv.ID = chi.URLParam(r, "id")
	sv, err = s.svc.Ledger.UpdateSavings(r.Context(), userID(r), sv)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newSavingsResponse(sv)).Write(w)
}

func (s *Server) handleDeleteSavings(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.DeleteSavings(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// ---- incomes ----

func incomeFromBody(p *RequestBodyParser, ownerID string) (core.Income, error) {
	amount, err := p.Amount("amount")
	if err != nil {
		return core.Income{}, err
	}
	return core.Income{
		OwnerID:           ownerID,
		ContributorUserID: p.Get("contributor_user_id"),
		Description:       p.Get("description"),
		Amount:            amount,
		Frequency:         core.Frequency(p.Get("frequency")),
		IsShared:          p.Bool("is_shared"),
	}, nil
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes, err := s.svc.Ledger.ListIncomes(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]incomeResponse, 0, len(incomes))
	for _, i := range incomes {
		out = append(out, newIncomeResponse(i))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	i, err := incomeFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	i, err = s.svc.Ledger.CreateIncome(r.Context(), i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newIncomeResponse(i)).Write(w)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	i, err := incomeFromBody(p, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	i.ID = chi.URLParam(r, "id")
	i, err = s.svc.Ledger.UpdateIncome(r.Context(), userID(r), i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newIncomeResponse(i)).Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.DeleteIncome(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
