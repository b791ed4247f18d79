package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"budget/internal/services"
)

// termsInput reads the loan fields shared by the resolver preview and credit
// creation, plus the optional explicit payment.
func termsInput(p *RequestBodyParser) (services.TermsInput, decimal.Decimal, error) {
	var (
		in  services.TermsInput
		err error
	)
	if in.Principal, err = p.Amount("principal"); err != nil {
		return in, decimal.Zero, err
	}
	if in.AnnualRate, err = p.Rate("annual_rate"); err != nil {
		return in, decimal.Zero, err
	}
	if in.StartDate, err = p.OptionalDate("start_date"); err != nil {
		return in, decimal.Zero, err
	}
	if in.InstallmentCount, err = p.Int("installment_count"); err != nil {
		return in, decimal.Zero, err
	}
	if in.EndDate, err = p.OptionalDate("end_date"); err != nil {
		return in, decimal.Zero, err
	}
	payment, err := p.OptionalAmount("periodic_payment")
	if err != nil {
		return in, decimal.Zero, err
	}
	return in, payment, nil
}

func (s *Server) handleListCredits(w http.ResponseWriter, r *http.Request) {
	asOf, err := ParseAsOf(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	credits, err := s.svc.Credits.ListCredits(r.Context(), userID(r), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newCreditResponses(credits)).Write(w)
}

func (s *Server) handleCreateCredit(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, payment, err := termsInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	credit, err := s.svc.Credits.CreateCredit(r.Context(), userID(r), services.CreditRequest{
		Name:             p.Get("name"),
		Principal:        in.Principal,
		AnnualRate:       in.AnnualRate,
		StartDate:        in.StartDate,
		InstallmentCount: in.InstallmentCount,
		EndDate:          in.EndDate,
		PeriodicPayment:  payment,
		IsShared:         p.Bool("is_shared"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/credits/"+credit.ID).
		JSON(newCreditResponse(credit)).
		Write(w)
}

// handleSettleCredit marks a credit as repaid early. Repeating the call
// returns the credit as first settled.
func (s *Server) handleSettleCredit(w http.ResponseWriter, r *http.Request) {
	credit, err := s.svc.Credits.SettleEarly(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newCreditResponse(credit)).Write(w)
}

func (s *Server) handleDeleteCredit(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Credits.DeleteCredit(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
