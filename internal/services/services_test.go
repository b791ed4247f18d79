package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ChangeMessage
	err  error
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Kind+":"+m.Action)
	}
	return out
}

type fixture struct {
	store         *memory.Store
	pub           *recordingPublisher
	resolver      *CollaboratorResolver
	credits       *CreditService
	ledger        *LedgerService
	collaboration *CollaborationService
	dashboard     *DashboardService
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	now := func() time.Time { return today }
	resolver := NewCollaboratorResolver(store, cache.NewLRUCache[[]string](16, time.Minute))
	return &fixture{
		store:         store,
		pub:           pub,
		resolver:      resolver,
		credits:       NewCreditService(store, resolver, pub, now),
		ledger:        NewLedgerService(store, resolver, pub, now),
		collaboration: NewCollaborationService(store, resolver, pub),
		dashboard:     NewDashboardService(store, resolver, now),
	}
}

func (f *fixture) partner(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	c, err := f.collaboration.Invite(ctx, a, b)
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if _, err := f.collaboration.Respond(ctx, c.ID, b, true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
}

func TestCreditService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC))

	created, err := f.credits.CreateCredit(ctx, "alice", CreditRequest{
		Name:             "laptop",
		Principal:        dec("1200"),
		StartDate:        core.NewDate(2024, 1, 5),
		InstallmentCount: 12,
	})
	if err != nil {
		t.Fatalf("CreateCredit() error = %v", err)
	}
	if created.ID == "" || !created.PeriodicPayment.Equal(dec("100")) {
		t.Fatalf("created = %+v", created.Credit)
	}
	if created.Evaluation.RemainingInstallments != 6 || !created.Evaluation.CurrentAmountDue.Equal(dec("600")) {
		t.Errorf("evaluation = %+v, want 6 remaining and 600 due", created.Evaluation)
	}

	if _, err := f.credits.SettleEarly(ctx, created.ID, "bob"); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("SettleEarly by non-owner error = %v, want ErrForbidden", err)
	}

	settled, err := f.credits.SettleEarly(ctx, created.ID, "alice")
	if err != nil {
		t.Fatalf("SettleEarly() error = %v", err)
	}
	if settled.Evaluation.Status != core.CreditSettled || settled.SettledInstallmentCount != 6 {
		t.Errorf("settled = %+v / %+v", settled.Credit, settled.Evaluation)
	}
	if _, err := f.credits.SettleEarly(ctx, created.ID, "alice"); err != nil {
		t.Fatalf("second SettleEarly() error = %v", err)
	}

	list, err := f.credits.ListCredits(ctx, "alice", core.NewDate(2023, 1, 1))
	if err != nil {
		t.Fatalf("ListCredits() error = %v", err)
	}
	if len(list) != 1 || list[0].Evaluation.RemainingInstallments != 0 {
		t.Errorf("settled credit evaluated before start = %+v", list)
	}

	if err := f.credits.DeleteCredit(ctx, created.ID, "alice"); err != nil {
		t.Fatalf("DeleteCredit() error = %v", err)
	}
	if err := f.credits.DeleteCredit(ctx, created.ID, "alice"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteCredit() error = %v, want ErrNotFound", err)
	}

	want := []string{"credit:created", "credit:settled", "credit:deleted"}
	if got := f.pub.actions(); len(got) != len(want) {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestCreditService_RejectsInconsistentPayment(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := f.credits.CreateCredit(context.Background(), "alice", CreditRequest{
		Name:             "sofa",
		Principal:        dec("1000"),
		StartDate:        core.NewDate(2024, 1, 1),
		InstallmentCount: 10,
		PeriodicPayment:  dec("80"),
	})
	if !errors.Is(err, core.ErrInconsistentTerms) {
		t.Fatalf("CreateCredit() error = %v, want ErrInconsistentTerms", err)
	}
	_, err = f.credits.CreateCredit(context.Background(), "alice", CreditRequest{Name: "x", Principal: dec("10")})
	if !errors.Is(err, core.ErrInvalidTerms) {
		t.Fatalf("CreateCredit() error = %v, want ErrInvalidTerms", err)
	}
}

func TestCreditService_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.pub.err = errors.New("broker down")
	_, err := f.credits.CreateCredit(context.Background(), "alice", CreditRequest{
		Name: "bike", Principal: dec("300"), StartDate: core.NewDate(2024, 1, 1), InstallmentCount: 3,
	})
	if err != nil {
		t.Fatalf("CreateCredit() error = %v", err)
	}
}

func TestCollaborationService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())

	if _, err := f.collaboration.Invite(ctx, "alice", "alice"); !errors.Is(err, core.ErrSelfCollaboration) {
		t.Errorf("self invite error = %v", err)
	}

	inv, err := f.collaboration.Invite(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if _, err := f.collaboration.Invite(ctx, "bob", "alice"); !errors.Is(err, core.ErrDuplicateInvite) {
		t.Errorf("reverse invite error = %v, want ErrDuplicateInvite", err)
	}
	if _, err := f.collaboration.Respond(ctx, inv.ID, "alice", true); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("inviter respond error = %v, want ErrForbidden", err)
	}

	got, _ := f.resolver.Collaborators(ctx, "alice")
	if len(got) != 0 {
		t.Fatalf("pending collaboration counted: %v", got)
	}

	if _, err := f.collaboration.Respond(ctx, inv.ID, "bob", false); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if _, err := f.collaboration.Respond(ctx, inv.ID, "bob", true); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("respond twice error = %v, want ErrInvalidTransition", err)
	}

	again, err := f.collaboration.Invite(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("re-invite after rejection error = %v", err)
	}
	if _, err := f.collaboration.Respond(ctx, again.ID, "bob", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	got, _ = f.resolver.Collaborators(ctx, "alice")
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("Collaborators(alice) = %v, want [bob]", got)
	}

	if err := f.collaboration.Remove(ctx, again.ID, "carol"); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("outsider remove error = %v", err)
	}
	if err := f.collaboration.Remove(ctx, again.ID, "bob"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	got, _ = f.resolver.Collaborators(ctx, "alice")
	if len(got) != 0 {
		t.Errorf("cached collaborators survived removal: %v", got)
	}

	for _, m := range f.pub.msgs {
		if m.Kind == amqp.KindCollaboration && m.CounterpartID == "" {
			t.Errorf("collaboration message without counterpart: %+v", m)
		}
	}
}

func TestLedgerService_OwnershipAndVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.partner(t, "alice", "bob")

	shared, err := f.ledger.CreateCharge(ctx, core.RecurringCharge{OwnerID: "bob", Name: "internet", Amount: dec("30"), Frequency: "mensuel", IsShared: true})
	if err != nil {
		t.Fatalf("CreateCharge() error = %v", err)
	}
	if shared.Frequency != core.Monthly {
		t.Errorf("Frequency = %q, want monthly", shared.Frequency)
	}
	if _, err := f.ledger.CreateCharge(ctx, core.RecurringCharge{OwnerID: "bob", Name: "gym", Amount: dec("40"), Frequency: core.Monthly}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.CreateCharge(ctx, core.RecurringCharge{OwnerID: "bob", Name: "bad", Amount: dec("40"), Frequency: "weekly"}); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("unknown frequency error = %v", err)
	}

	visible, err := f.ledger.ListCharges(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != shared.ID {
		t.Errorf("alice sees %+v, want only the shared charge", visible)
	}

	shared.Amount = dec("35")
	if _, err := f.ledger.UpdateCharge(ctx, "alice", shared); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("collaborator update error = %v, want ErrForbidden", err)
	}
	updated, err := f.ledger.UpdateCharge(ctx, "bob", shared)
	if err != nil {
		t.Fatalf("UpdateCharge() error = %v", err)
	}
	if !updated.Amount.Equal(dec("35")) || updated.OwnerID != "bob" {
		t.Errorf("updated = %+v", updated)
	}
	if err := f.ledger.DeleteCharge(ctx, shared.ID, "alice"); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("collaborator delete error = %v", err)
	}
	if err := f.ledger.DeleteCharge(ctx, shared.ID, "bob"); err != nil {
		t.Fatalf("DeleteCharge() error = %v", err)
	}

	in, err := f.ledger.CreateIncome(ctx, core.Income{OwnerID: "alice", Amount: dec("2000"), Frequency: core.Monthly})
	if err != nil {
		t.Fatalf("CreateIncome() error = %v", err)
	}
	if in.ContributorUserID != "alice" {
		t.Errorf("ContributorUserID = %q, want alice", in.ContributorUserID)
	}
	incomes, err := f.ledger.ListIncomes(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(incomes) != 0 {
		t.Errorf("bob sees alice's private income: %+v", incomes)
	}
}

func TestLedgerService_ListSavings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC))

	if _, err := f.ledger.CreateSavings(ctx, core.SavingsContribution{
		OwnerID: "alice", Name: "rainy day", Amount: dec("50"), Frequency: core.Monthly, StartDate: core.NewDate(2024, 1, 10),
	}); err != nil {
		t.Fatalf("CreateSavings() error = %v", err)
	}
	report, err := f.ledger.ListSavings(ctx, "alice", core.Date{})
	if err != nil {
		t.Fatalf("ListSavings() error = %v", err)
	}
	if !report.AsOf.Equal(core.NewDate(2024, 4, 10).Time) {
		t.Errorf("AsOf = %s", report.AsOf)
	}
	if !report.SavedTotal.Equal(dec("200")) || !report.MonthlyTotal.Equal(dec("50")) {
		t.Errorf("report = saved %s monthly %s, want 200 and 50", report.SavedTotal, report.MonthlyTotal)
	}
}

func TestDashboardService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	f.partner(t, "alice", "bob")

	mustNoErr := func(_ any, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	mustNoErr(f.ledger.CreateIncome(ctx, core.Income{OwnerID: "alice", Amount: dec("3500"), Frequency: core.Monthly, IsShared: true}))
	mustNoErr(f.ledger.CreateIncome(ctx, core.Income{OwnerID: "bob", Amount: dec("1500"), Frequency: core.Monthly, IsShared: true}))
	mustNoErr(f.ledger.CreateCharge(ctx, core.RecurringCharge{OwnerID: "bob", Name: "rent", Amount: dec("1000"), Frequency: core.Monthly, IsShared: true}))
	mustNoErr(f.credits.CreateCredit(ctx, "alice", CreditRequest{Name: "car", Principal: dec("1200"), StartDate: core.NewDate(2024, 1, 1), InstallmentCount: 12}))
	mustNoErr(f.ledger.CreateSavings(ctx, core.SavingsContribution{OwnerID: "alice", Name: "trip", Amount: dec("300"), Frequency: core.Quarterly, StartDate: core.NewDate(2024, 1, 1)}))

	d, err := f.dashboard.Dashboard(ctx, "alice", core.Date{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	r := d.Shares
	if !r.YourPercentage.Equal(dec("70")) {
		t.Errorf("YourPercentage = %s, want 70", r.YourPercentage)
	}
	if !r.ChargeShare.Equal(dec("700")) || !r.CreditShare.Equal(dec("100")) || !r.SavingsShare.Equal(dec("100")) {
		t.Errorf("shares = charge %s credit %s savings %s", r.ChargeShare, r.CreditShare, r.SavingsShare)
	}
	if !r.EstimatedDisposableIncome.Equal(dec("4100")) {
		t.Errorf("EstimatedDisposableIncome = %s, want 4100", r.EstimatedDisposableIncome)
	}
	if len(d.Credits) != 1 || d.Credits[0].Evaluation.RemainingInstallments != 10 {
		t.Errorf("credits = %+v", d.Credits)
	}
	if !d.SavingsSaved.Equal(dec("300")) {
		t.Errorf("SavingsSaved = %s, want 300", d.SavingsSaved)
	}

	bob, err := f.dashboard.Dashboard(ctx, "bob", core.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bob.Credits) != 0 {
		t.Errorf("bob sees alice's private credit: %+v", bob.Credits)
	}
	if !bob.Shares.ChargeShare.Equal(dec("300")) {
		t.Errorf("bob ChargeShare = %s, want 300", bob.Shares.ChargeShare)
	}
}
