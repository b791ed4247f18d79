package core

import "github.com/shopspring/decimal"

const (
	CreditActive   CreditStatus = "active"
	CreditSettled  CreditStatus = "settled"
	CreditArchived CreditStatus = "archived"
)

const (
	ObligationCredit  ObligationKind = "credit"
	ObligationCharge  ObligationKind = "charge"
	ObligationSavings ObligationKind = "savings"
)

type (
	CreditStatus string

	ObligationKind string

	// CreditEvaluation is the state of a credit derived from its terms and a date.
	CreditEvaluation struct {
		PaidInstallments      int
		RemainingInstallments int
		CurrentAmountDue      decimal.Decimal
		Status                CreditStatus
	}

	// Obligation is a monthly cost that can be split between collaborators.
	Obligation struct {
		ID            string
		Kind          ObligationKind
		Name          string
		OwnerID       string
		MonthlyAmount decimal.Decimal
		IsShared      bool
		// Inactive obligations (settled or archived credits) are reported
		// but never charged.
		Inactive bool
	}

	// ObligationShare is the current user's part of one obligation.
	ObligationShare struct {
		Obligation
		UserShare decimal.Decimal
	}

	// ShareReport is what the dashboard shows for one user at one date.
	ShareReport struct {
		UserID                    string
		AsOf                      Date
		Collaborators             []string
		TotalMonthlyIncome        decimal.Decimal
		YourMonthlyIncome         decimal.Decimal
		YourPercentage            decimal.Decimal
		Obligations               []ObligationShare
		CreditShare               decimal.Decimal
		ChargeShare               decimal.Decimal
		SavingsShare              decimal.Decimal
		EstimatedDisposableIncome decimal.Decimal
		// CreditBurden is CreditShare / YourMonthlyIncome, zero without income.
		CreditBurden decimal.Decimal
	}

	// SavingsProgress pairs a contribution with its derived totals.
	SavingsProgress struct {
		Contribution      SavingsContribution
		MonthlyEquivalent decimal.Decimal
		CumulativeSaved   decimal.Decimal
	}
)
