package http

import (
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/services"
)

// Money and percentages leave the API as strings with two decimals so
// clients never see binary floating point.
func money(d decimal.Decimal) string { return core.FormatAmount(d) }

type termsResponse struct {
	Principal        string `json:"principal"`
	AnnualRate       string `json:"annual_rate"`
	StartDate        string `json:"start_date"`
	InstallmentCount int    `json:"installment_count"`
	EndDate          string `json:"end_date"`
	PeriodicPayment  string `json:"periodic_payment"`
	TotalRepayment   string `json:"total_repayment"`
}

func newTermsResponse(t core.LoanTerms) termsResponse {
	return termsResponse{
		Principal:        money(t.Principal),
		AnnualRate:       t.AnnualRate.String(),
		StartDate:        t.StartDate.String(),
		InstallmentCount: t.InstallmentCount,
		EndDate:          t.EndDate.String(),
		PeriodicPayment:  money(t.PeriodicPayment),
		TotalRepayment:   money(t.PeriodicPayment.Mul(decimal.NewFromInt(int64(t.InstallmentCount)))),
	}
}

type evaluationResponse struct {
	PaidInstallments      int    `json:"paid_installments"`
	RemainingInstallments int    `json:"remaining_installments"`
	CurrentAmountDue      string `json:"current_amount_due"`
	Status                string `json:"status"`
}

type creditResponse struct {
	ID                      string             `json:"id"`
	OwnerID                 string             `json:"owner_id"`
	Name                    string             `json:"name"`
	Terms                   termsResponse      `json:"terms"`
	IsShared                bool               `json:"is_shared"`
	IsSettledEarly          bool               `json:"is_settled_early"`
	SettledInstallmentCount int                `json:"settled_installment_count,omitempty"`
	SettledAt               string             `json:"settled_at,omitempty"`
	Evaluation              evaluationResponse `json:"evaluation"`
}

func newCreditResponse(ec services.EvaluatedCredit) creditResponse {
	return creditResponse{
		ID:                      ec.ID,
		OwnerID:                 ec.OwnerID,
		Name:                    ec.Name,
		Terms:                   newTermsResponse(ec.LoanTerms),
		IsShared:                ec.IsShared,
		IsSettledEarly:          ec.IsSettledEarly,
		SettledInstallmentCount: ec.SettledInstallmentCount,
		SettledAt:               ec.SettledAt.String(),
		Evaluation: evaluationResponse{
			PaidInstallments:      ec.Evaluation.PaidInstallments,
			RemainingInstallments: ec.Evaluation.RemainingInstallments,
			CurrentAmountDue:      money(ec.Evaluation.CurrentAmountDue),
			Status:                string(ec.Evaluation.Status),
		},
	}
}

func newCreditResponses(credits []services.EvaluatedCredit) []creditResponse {
	out := make([]creditResponse, 0, len(credits))
	for _, c := range credits {
		out = append(out, newCreditResponse(c))
	}
	return out
}

type chargeResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Name              string `json:"name"`
	Amount            string `json:"amount"`
	Frequency         string `json:"frequency"`
	MonthlyEquivalent string `json:"monthly_equivalent"`
	BeneficiaryID     string `json:"beneficiary_id,omitempty"`
	IsShared          bool   `json:"is_shared"`
}

func newChargeResponse(c core.RecurringCharge) chargeResponse {
	return chargeResponse{
		ID:                c.ID,
		OwnerID:           c.OwnerID,
		Name:              c.Name,
		Amount:            money(c.Amount),
		Frequency:         string(c.Frequency),
		MonthlyEquivalent: money(services.ToMonthlyEquivalent(c.Amount, c.Frequency)),
		BeneficiaryID:     c.BeneficiaryID,
		IsShared:          c.IsShared,
	}
}

type savingsResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Name              string `json:"name"`
	Amount            string `json:"amount"`
	Frequency         string `json:"frequency"`
	StartDate         string `json:"start_date"`
	BeneficiaryID     string `json:"beneficiary_id,omitempty"`
	IsShared          bool   `json:"is_shared"`
	MonthlyEquivalent string `json:"monthly_equivalent"`
	CumulativeSaved   string `json:"cumulative_saved,omitempty"`
}

func newSavingsResponse(s core.SavingsContribution) savingsResponse {
	return savingsResponse{
		ID:                s.ID,
		OwnerID:           s.OwnerID,
		Name:              s.Name,
		Amount:            money(s.Amount),
		Frequency:         string(s.Frequency),
		StartDate:         s.StartDate.String(),
		BeneficiaryID:     s.BeneficiaryID,
		IsShared:          s.IsShared,
		MonthlyEquivalent: money(services.ToMonthlyEquivalent(s.Amount, s.Frequency)),
	}
}

func newSavingsProgressResponses(progress []core.SavingsProgress) []savingsResponse {
	out := make([]savingsResponse, 0, len(progress))
	for _, p := range progress {
		r := newSavingsResponse(p.Contribution)
		r.MonthlyEquivalent = money(p.MonthlyEquivalent)
		r.CumulativeSaved = money(p.CumulativeSaved)
		out = append(out, r)
	}
	return out
}

type savingsListResponse struct {
	AsOf          string            `json:"as_of"`
	Contributions []savingsResponse `json:"contributions"`
	MonthlyTotal  string            `json:"monthly_total"`
	SavedTotal    string            `json:"saved_total"`
}

type incomeResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	ContributorUserID string `json:"contributor_user_id"`
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Frequency         string `json:"frequency"`
	// Only monthly incomes count toward the shared pool.
	CountsTowardPool bool `json:"counts_toward_pool"`
	IsShared         bool `json:"is_shared"`
}

func newIncomeResponse(i core.Income) incomeResponse {
	return incomeResponse{
		ID:                i.ID,
		OwnerID:           i.OwnerID,
		ContributorUserID: i.ContributorUserID,
		Description:       i.Description,
		Amount:            money(i.Amount),
		Frequency:         string(i.Frequency),
		CountsTowardPool:  i.Frequency == core.Monthly,
		IsShared:          i.IsShared,
	}
}

type collaborationResponse struct {
	ID        string `json:"id"`
	InviterID string `json:"inviter_id"`
	InviteeID string `json:"invitee_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

func newCollaborationResponse(c core.Collaboration) collaborationResponse {
	r := collaborationResponse{
		ID:        c.ID,
		InviterID: c.InviterID,
		InviteeID: c.InviteeID,
		Status:    string(c.Status),
	}
	if !c.CreatedAt.IsZero() {
		r.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	return r
}

type obligationResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	OwnerID       string `json:"owner_id"`
	MonthlyAmount string `json:"monthly_amount"`
	IsShared      bool   `json:"is_shared"`
	Inactive      bool   `json:"inactive,omitempty"`
	YourShare     string `json:"your_share"`
}

type dashboardResponse struct {
	UserID                    string               `json:"user_id"`
	AsOf                      string               `json:"as_of"`
	Collaborators             []string             `json:"collaborators"`
	TotalMonthlyIncome        string               `json:"total_monthly_income"`
	YourMonthlyIncome         string               `json:"your_monthly_income"`
	YourPercentage            string               `json:"your_percentage"`
	CreditShare               string               `json:"credit_share"`
	ChargeShare               string               `json:"charge_share"`
	SavingsShare              string               `json:"savings_share"`
	EstimatedDisposableIncome string               `json:"estimated_disposable_income"`
	CreditBurden              string               `json:"credit_burden"`
	Obligations               []obligationResponse `json:"obligations"`
	Credits                   []creditResponse     `json:"credits"`
	Savings                   []savingsResponse    `json:"savings"`
	SavingsSaved              string               `json:"savings_saved"`
}

func newDashboardResponse(d services.Dashboard) dashboardResponse {
	s := d.Shares
	obligations := make([]obligationResponse, 0, len(s.Obligations))
	for _, o := range s.Obligations {
		obligations = append(obligations, obligationResponse{
			ID:            o.ID,
			Kind:          string(o.Kind),
			Name:          o.Name,
			OwnerID:       o.OwnerID,
			MonthlyAmount: money(o.MonthlyAmount),
			IsShared:      o.IsShared,
			Inactive:      o.Inactive,
			YourShare:     money(o.UserShare),
		})
	}
	collaborators := s.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return dashboardResponse{
		UserID:                    s.UserID,
		AsOf:                      s.AsOf.String(),
		Collaborators:             collaborators,
		TotalMonthlyIncome:        money(s.TotalMonthlyIncome),
		YourMonthlyIncome:         money(s.YourMonthlyIncome),
		YourPercentage:            money(s.YourPercentage),
		CreditShare:               money(s.CreditShare),
		ChargeShare:               money(s.ChargeShare),
		SavingsShare:              money(s.SavingsShare),
		EstimatedDisposableIncome: money(s.EstimatedDisposableIncome),
		CreditBurden:              s.CreditBurden.StringFixed(4),
		Obligations:               obligations,
		Credits:                   newCreditResponses(d.Credits),
		Savings:                   newSavingsProgressResponses(d.Savings),
		SavingsSaved:              money(d.SavingsSaved),
	}
}
