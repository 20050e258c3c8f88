package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"subtrack/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "subtrack.db"), logger)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSub(userID int64, name string) core.Subscription {
	return core.Subscription{
		UserID:   userID,
		Name:     name,
		Price:    9.99,
		Currency: "USD",
		Anchor:   core.NewDate(2024, 1, 15),
		Cycle:    core.BillingCycle{Amount: 1, Unit: core.UnitMonth},
		Reminder: core.ReminderPolicy{Amount: 1, Unit: core.RemindWeek},
	}
}

func TestFindOrCreateUser(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if created.TelegramID != 42 || created.Username != "alice" {
		t.Errorf("created user = %+v", created)
	}
	if created.Settings.DefaultCurrency != "RUB" {
		t.Errorf("default currency = %s, want RUB", created.Settings.DefaultCurrency)
	}

	again, err := repo.FindOrCreateUser(ctx, 42, "ignored", "Ignored")
	if err != nil {
		t.Fatalf("FindOrCreateUser (second): %v", err)
	}
	if again.ID != created.ID || again.Username != "alice" {
		t.Errorf("second call returned %+v, want existing user %+v", again, created)
	}

	if _, err := repo.UserByTelegramID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user error = %v, want ErrUserNotFound", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice"); err != nil {
		t.Fatal(err)
	}

	updated, err := repo.UpdateSettings(ctx, 42, core.Settings{DefaultCurrency: "EUR"})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.Settings.DefaultCurrency != "EUR" {
		t.Errorf("default currency = %s, want EUR", updated.Settings.DefaultCurrency)
	}
	if updated.Settings.SortMode != "by_date" {
		t.Errorf("unset field changed: sort mode = %s", updated.Settings.SortMode)
	}

	if _, err := repo.UpdateSettings(ctx, 999, core.Settings{}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user error = %v, want ErrUserNotFound", err)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	created, err := repo.CreateSubscription(ctx, testSub(user.ID, "Netflix"))
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if created.ID == 0 || !created.Active {
		t.Errorf("created = %+v", created)
	}

	listed, err := repo.SubscriptionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("SubscriptionsByUser: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d subscriptions, want 1", len(listed))
	}
	got := listed[0]
	if got.Name != "Netflix" || got.Cycle != created.Cycle || got.Reminder != created.Reminder {
		t.Errorf("round-tripped subscription = %+v", got)
	}
	if !got.Anchor.Equal(created.Anchor.Time) {
		t.Errorf("anchor = %s, want %s", got.Anchor, created.Anchor)
	}
	if got.TelegramID != 42 {
		t.Errorf("telegram id = %d, want 42", got.TelegramID)
	}

	got.Price = 12.99
	if _, err := repo.UpdateSubscription(ctx, got); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	listed, _ = repo.SubscriptionsByUser(ctx, user.ID)
	if listed[0].Price != 12.99 {
		t.Errorf("price after update = %v, want 12.99", listed[0].Price)
	}

	if err := repo.DeactivateSubscription(ctx, got.ID, user.ID); err != nil {
		t.Fatalf("DeactivateSubscription: %v", err)
	}
	listed, _ = repo.SubscriptionsByUser(ctx, user.ID)
	if len(listed) != 0 {
		t.Errorf("deactivated subscription still listed: %+v", listed)
	}

	if err := repo.DeactivateSubscription(ctx, 9999, user.ID); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("missing subscription error = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestSubscriptionsByUser_AnchorlessSortLast(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	noAnchor := testSub(user.ID, "Trial")
	noAnchor.Anchor = core.Date{}
	if _, err := repo.CreateSubscription(ctx, noAnchor); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateSubscription(ctx, testSub(user.ID, "Netflix")); err != nil {
		t.Fatal(err)
	}

	listed, err := repo.SubscriptionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d, want 2", len(listed))
	}
	if listed[0].Name != "Netflix" || listed[1].Name != "Trial" {
		t.Errorf("order = [%s, %s], want anchored first", listed[0].Name, listed[1].Name)
	}
	if listed[1].HasAnchor() {
		t.Errorf("anchorless subscription came back with an anchor")
	}
}

func TestCategories(t *testing.T) {
	repo := testRepo(t)

	categories, err := repo.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	wantNames := []string{"Cloud Storage", "Communication", "Entertainment", "Fitness", "Music", "Other"}
	if len(categories) != len(wantNames) {
		t.Fatalf("listed %d categories, want %d", len(categories), len(wantNames))
	}
	for i, c := range categories {
		if c.Name != wantNames[i] {
			t.Errorf("category[%d] = %s, want %s", i, c.Name, wantNames[i])
		}
		if c.ID == 0 || c.Icon == "" {
			t.Errorf("category %s missing id or icon: %+v", c.Name, c)
		}
	}
}

func TestSubscriptionCategoryRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	categories, err := repo.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var entertainment core.Category
	for _, c := range categories {
		if c.Name == "Entertainment" {
			entertainment = c
		}
	}

	sub := testSub(user.ID, "Netflix")
	sub.CategoryID = entertainment.ID
	sub.Icon = "🎬"
	sub.Color = "#E50914"
	if _, err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	// Uncategorized rows store NULL and come back with the zero id.
	if _, err := repo.CreateSubscription(ctx, testSub(user.ID, "Trial")); err != nil {
		t.Fatal(err)
	}

	listed, err := repo.SubscriptionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]core.Subscription, len(listed))
	for _, s := range listed {
		byName[s.Name] = s
	}
	got := byName["Netflix"]
	if got.CategoryID != entertainment.ID || got.Category != "Entertainment" {
		t.Errorf("category = %d %q, want %d Entertainment", got.CategoryID, got.Category, entertainment.ID)
	}
	if got.Icon != "🎬" || got.Color != "#E50914" {
		t.Errorf("icon/color = %q/%q", got.Icon, got.Color)
	}
	plain := byName["Trial"]
	if plain.CategoryID != 0 || plain.Category != "" {
		t.Errorf("uncategorized subscription = %d %q, want none", plain.CategoryID, plain.Category)
	}
}

func TestAdminStats(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	alice, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := repo.FindOrCreateUser(ctx, 43, "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpdateSettings(ctx, 43, core.Settings{DefaultCurrency: "EUR"}); err != nil {
		t.Fatal(err)
	}

	for _, s := range []core.Subscription{
		testSub(alice.ID, "Netflix"),
		testSub(bob.ID, "Netflix"),
		testSub(bob.ID, "Spotify"),
	} {
		if _, err := repo.CreateSubscription(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	inactive, err := repo.CreateSubscription(ctx, testSub(bob.ID, "Cancelled"))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.DeactivateSubscription(ctx, inactive.ID, bob.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := repo.AdminStats(ctx)
	if err != nil {
		t.Fatalf("AdminStats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.NewThisWeek != 2 {
		t.Errorf("users = %d/%d, want 2/2", stats.TotalUsers, stats.NewThisWeek)
	}
	if stats.TotalSubscriptions != 3 {
		t.Errorf("active subscriptions = %d, want 3 (inactive excluded)", stats.TotalSubscriptions)
	}
	usage := make(map[string]int, len(stats.CurrencyUsage))
	for _, c := range stats.CurrencyUsage {
		usage[c.Currency] = c.Users
	}
	if usage["RUB"] != 1 || usage["EUR"] != 1 {
		t.Errorf("currency usage = %v", stats.CurrencyUsage)
	}
	if len(stats.PopularSubscriptions) == 0 {
		t.Fatal("no popular subscriptions")
	}
	if top := stats.PopularSubscriptions[0]; top.Name != "Netflix" || top.Count != 2 {
		t.Errorf("most popular = %+v, want Netflix x2", top)
	}
}

func TestTopSubscriptionsByPrice(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	cheap := testSub(user.ID, "Spotify")
	cheap.Price = 4.99
	pricey := testSub(user.ID, "Backup")
	pricey.Price = 120
	pricey.Cycle = core.BillingCycle{Amount: 1, Unit: core.UnitYear}
	for _, s := range []core.Subscription{cheap, pricey} {
		if _, err := repo.CreateSubscription(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	top, err := repo.TopSubscriptionsByPrice(ctx, 1)
	if err != nil {
		t.Fatalf("TopSubscriptionsByPrice: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("rows = %d, want limit 1 applied", len(top))
	}
	got := top[0]
	if got.Name != "Backup" || got.Price != 120 || got.Username != "alice" || got.TelegramID != 42 {
		t.Errorf("top row = %+v", got)
	}
	if got.Cycle != (core.BillingCycle{Amount: 1, Unit: core.UnitYear}) {
		t.Errorf("cycle = %+v, want yearly", got.Cycle)
	}
}

func TestAllUsers(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for _, u := range []struct {
		telegramID int64
		username   string
	}{{42, "alice"}, {43, "bob"}} {
		if _, err := repo.FindOrCreateUser(ctx, u.telegramID, u.username, u.username); err != nil {
			t.Fatal(err)
		}
	}

	users, err := repo.AllUsers(ctx)
	if err != nil {
		t.Fatalf("AllUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("listed %d users, want 2", len(users))
	}
	// Same-second timestamps fall back to id order, newest first.
	if users[0].Username != "bob" || users[1].Username != "alice" {
		t.Errorf("order = [%s, %s], want newest first", users[0].Username, users[1].Username)
	}
}

func TestReminderCandidatesAndMarkNotified(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.FindOrCreateUser(ctx, 42, "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	withReminder, err := repo.CreateSubscription(ctx, testSub(user.ID, "Netflix"))
	if err != nil {
		t.Fatal(err)
	}

	silent := testSub(user.ID, "Storage")
	silent.Reminder = core.ReminderNever
	if _, err := repo.CreateSubscription(ctx, silent); err != nil {
		t.Fatal(err)
	}

	candidates, err := repo.ReminderCandidates(ctx)
	if err != nil {
		t.Fatalf("ReminderCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 (Never excluded)", len(candidates))
	}
	c := candidates[0]
	if c.Subscription.Name != "Netflix" || c.Subscription.TelegramID != 42 {
		t.Errorf("candidate = %+v", c.Subscription)
	}
	if !c.LastNotified.IsEmpty() {
		t.Errorf("fresh subscription has last notified = %s", c.LastNotified)
	}

	billDate := core.NewDate(2024, 5, 15)
	if err := repo.MarkNotified(ctx, withReminder.ID, billDate); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	candidates, _ = repo.ReminderCandidates(ctx)
	if !candidates[0].LastNotified.Equal(billDate.Time) {
		t.Errorf("last notified = %s, want %s",
			candidates[0].LastNotified.Format("2006-01-02"), billDate.Format("2006-01-02"))
	}
}
