package services

import (
	"slices"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// CollaboratorSet returns the sorted, de-duplicated counterparts of userID
// across accepted collaborations. Pending and rejected edges are ignored.
func CollaboratorSet(userID string, collaborations []core.Collaboration) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range collaborations {
		if c.Status != core.CollaborationAccepted {
			continue
		}
		other := c.Counterpart(userID)
		if other == "" || other == userID {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	slices.Sort(out)
	return out
}

// visibility answers whether a record belongs to the user's view: their own
// records plus the shared records of accepted collaborators.
type visibility struct {
	userID        string
	collaborators map[string]struct{}
}

func newVisibility(userID string, collaborators []string) visibility {
	v := visibility{userID: userID, collaborators: make(map[string]struct{}, len(collaborators))}
	for _, c := range collaborators {
		v.collaborators[c] = struct{}{}
	}
	return v
}

func (v visibility) visible(ownerID string, shared bool) bool {
	if ownerID == v.userID {
		return true
	}
	_, ok := v.collaborators[ownerID]
	return ok && shared
}

// VisibleCredits filters credits down to what userID may see.
func VisibleCredits(userID string, collaborators []string, credits []core.Credit) []core.Credit {
	v := newVisibility(userID, collaborators)
	return slices.DeleteFunc(slices.Clone(credits), func(c core.Credit) bool { return !v.visible(c.OwnerID, c.IsShared) })
}

func VisibleCharges(userID string, collaborators []string, charges []core.RecurringCharge) []core.RecurringCharge {
	v := newVisibility(userID, collaborators)
	return slices.DeleteFunc(slices.Clone(charges), func(c core.RecurringCharge) bool { return !v.visible(c.OwnerID, c.IsShared) })
}

func VisibleSavings(userID string, collaborators []string, savings []core.SavingsContribution) []core.SavingsContribution {
	v := newVisibility(userID, collaborators)
	return slices.DeleteFunc(slices.Clone(savings), func(s core.SavingsContribution) bool { return !v.visible(s.OwnerID, s.IsShared) })
}

func VisibleIncomes(userID string, collaborators []string, incomes []core.Income) []core.Income {
	v := newVisibility(userID, collaborators)
	return slices.DeleteFunc(slices.Clone(incomes), func(i core.Income) bool { return !v.visible(i.OwnerID, i.IsShared) })
}

// BuildObligations turns evaluated credits, charges and savings into monthly
// obligations. Credits that are settled or archived are kept but marked
// inactive; so are savings without a start date.
func BuildObligations(credits []EvaluatedCredit, charges []core.RecurringCharge, savings []core.SavingsContribution) []core.Obligation {
	out := make([]core.Obligation, 0, len(credits)+len(charges)+len(savings))
	for _, c := range credits {
		out = append(out, core.Obligation{
			ID:            c.ID,
			Kind:          core.ObligationCredit,
			Name:          c.Name,
			OwnerID:       c.OwnerID,
			MonthlyAmount: c.PeriodicPayment,
			IsShared:      c.IsShared,
			Inactive:      c.Evaluation.Status != core.CreditActive,
		})
	}
	for _, c := range charges {
		out = append(out, core.Obligation{
			ID:            c.ID,
			Kind:          core.ObligationCharge,
			Name:          c.Name,
			OwnerID:       c.OwnerID,
			MonthlyAmount: ToMonthlyEquivalent(c.Amount, c.Frequency),
			IsShared:      c.IsShared,
		})
	}
	for _, s := range savings {
		out = append(out, core.Obligation{
			ID:            s.ID,
			Kind:          core.ObligationSavings,
			Name:          s.Name,
			OwnerID:       s.OwnerID,
			MonthlyAmount: ToMonthlyEquivalent(s.Amount, s.Frequency),
			IsShared:      s.IsShared,
			Inactive:      s.StartDate.IsZero(),
		})
	}
	return out
}

// ComputeShares pools the monthly incomes visible to userID, derives the
// user's income percentage and charges each active obligation accordingly:
// shared obligations by percentage, the user's private ones in full, other
// users' private ones not at all. Nothing is rounded here.
func ComputeShares(userID string, collaborators []string, incomes []core.Income, obligations []core.Obligation) core.ShareReport {
	v := newVisibility(userID, collaborators)
	report := core.ShareReport{
		UserID:        userID,
		Collaborators: slices.Clone(collaborators),
	}

	for _, in := range incomes {
		if !v.visible(in.OwnerID, in.IsShared) || in.Frequency != core.Monthly {
			continue
		}
		monthly := ToMonthlyEquivalent(in.Amount, in.Frequency)
		report.TotalMonthlyIncome = report.TotalMonthlyIncome.Add(monthly)
		if in.ContributorUserID == userID {
			report.YourMonthlyIncome = report.YourMonthlyIncome.Add(monthly)
		}
	}
	if report.TotalMonthlyIncome.IsPositive() {
		report.YourPercentage = report.YourMonthlyIncome.Mul(hundred).Div(report.TotalMonthlyIncome)
	}

	for _, ob := range obligations {
		if !v.visible(ob.OwnerID, ob.IsShared) {
			continue
		}
		share := ObligationShare(userID, ob, report.TotalMonthlyIncome, report.YourPercentage)
		report.Obligations = append(report.Obligations, core.ObligationShare{Obligation: ob, UserShare: share})
		switch ob.Kind {
		case core.ObligationCredit:
			report.CreditShare = report.CreditShare.Add(share)
		case core.ObligationCharge:
			report.ChargeShare = report.ChargeShare.Add(share)
		case core.ObligationSavings:
			report.SavingsShare = report.SavingsShare.Add(share)
		}
	}

	report.EstimatedDisposableIncome = report.TotalMonthlyIncome.
		Sub(report.CreditShare).
		Sub(report.ChargeShare).
		Sub(report.SavingsShare)
	if report.YourMonthlyIncome.IsPositive() {
		report.CreditBurden = report.CreditShare.Div(report.YourMonthlyIncome)
	}
	return report
}

// ObligationShare is userID's monthly part of ob given the pooled income and
// the user's percentage of it.
func ObligationShare(userID string, ob core.Obligation, totalIncome, percentage decimal.Decimal) decimal.Decimal {
	switch {
	case ob.Inactive:
		return decimal.Zero
	case ob.IsShared:
		if !totalIncome.IsPositive() || !percentage.IsPositive() {
			return decimal.Zero
		}
		return ob.MonthlyAmount.Mul(percentage).Div(hundred)
	case ob.OwnerID == userID:
		return ob.MonthlyAmount
	default:
		return decimal.Zero
	}
}
