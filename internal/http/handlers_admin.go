package http

import (
	"net/http"

	"subtrack/internal/currency"
	"subtrack/internal/rates"
	"subtrack/internal/services"
)

const expensiveLimit = 10

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type adminUserResponse struct {
	userResponse
	ActiveSubscriptions int                `json:"active_subscriptions"`
	MonthlySpending     map[string]float64 `json:"monthly_spending"`
	MonthlySpendingUSD  float64            `json:"monthly_spending_usd"`
	Unconverted         []string           `json:"unconverted,omitempty"`
}

type expensiveSubscriptionResponse struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Cycle        string  `json:"cycle"`
	MonthlyPrice float64 `json:"monthly_price"`
	Username     string  `json:"username"`
	TelegramID   int64   `json:"telegram_id"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.AdminStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	usage := make([]map[string]any, 0, len(stats.CurrencyUsage))
	for _, c := range stats.CurrencyUsage {
		usage = append(usage, map[string]any{"currency": c.Currency, "users": c.Users})
	}
	popular := make([]map[string]any, 0, len(stats.PopularSubscriptions))
	for _, n := range stats.PopularSubscriptions {
		popular = append(popular, map[string]any{"name": n.Name, "count": n.Count})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_users":           stats.TotalUsers,
		"new_this_week":         stats.NewThisWeek,
		"new_this_month":        stats.NewThisMonth,
		"total_subscriptions":   stats.TotalSubscriptions,
		"currency_usage":        usage,
		"popular_subscriptions": popular,
	})
}

// handleAdminUsers lists every user with their active subscription count,
// per-currency monthly spend, and that spend collapsed into USD so users
// with different default currencies rank on one scale.
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.AllUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]adminUserResponse, 0, len(users))
	for _, user := range users {
		subs, err := s.store.SubscriptionsByUser(r.Context(), user.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		active := 0
		for _, sub := range subs {
			if sub.Active {
				active++
			}
		}

		totals := services.MonthlyTotalsByCurrency(subs)
		converted, err := s.aggregator.ConvertTotals(r.Context(), totals, rates.PivotCurrency)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out = append(out, adminUserResponse{
			userResponse:        toUserResponse(user),
			ActiveSubscriptions: active,
			MonthlySpending:     totals,
			MonthlySpendingUSD:  converted.Total,
			Unconverted:         converted.Failed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleExpensiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	top, err := s.store.TopSubscriptionsByPrice(r.Context(), expensiveLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]expensiveSubscriptionResponse, 0, len(top))
	for _, e := range top {
		out = append(out, expensiveSubscriptionResponse{
			Name:         e.Name,
			Price:        e.Price,
			Currency:     e.Currency,
			Cycle:        e.Cycle.String(),
			MonthlyPrice: currency.Round2(e.Price * e.Cycle.MonthlyFactor()),
			Username:     e.Username,
			TelegramID:   e.TelegramID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}
