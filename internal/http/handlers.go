package http

import (
	"net/http"
	"time"

	"subtrack/internal/billing"
	"subtrack/internal/core"
	"subtrack/internal/currency"
	"subtrack/internal/services"
)

const dateLayout = "2006-01-02"

const upcomingWindowDays = 7

type initUserRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}

type userResponse struct {
	TelegramID      int64  `json:"telegram_id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	DefaultCurrency string `json:"default_currency"`
	DisplayMode     string `json:"display_mode"`
	SortMode        string `json:"sort_mode"`
}

type settingsRequest struct {
	DefaultCurrency string `json:"default_currency"`
	DisplayMode     string `json:"display_mode"`
	SortMode        string `json:"sort_mode"`
}

type subscriptionRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	FirstBill   string  `json:"first_bill"`
	Cycle       string  `json:"cycle"`
	RemindMe    string  `json:"remind_me"`
	CategoryID  int64   `json:"category_id"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
}

type subscriptionResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	FirstBill    string  `json:"first_bill,omitempty"`
	NextBill     string  `json:"next_bill,omitempty"`
	Cycle        string  `json:"cycle"`
	RemindMe     string  `json:"remind_me"`
	MonthlyPrice float64 `json:"monthly_price"`
	CategoryID   int64   `json:"category_id,omitempty"`
	Category     string  `json:"category,omitempty"`
	Icon         string  `json:"icon,omitempty"`
	Color        string  `json:"color,omitempty"`
}

type upcomingEntry struct {
	subscriptionResponse
	DaysUntil int `json:"days_until"`
}

func (s *Server) handleInitUser(w http.ResponseWriter, r *http.Request) {
	var req initUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TelegramID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "telegram_id is required")
		return
	}

	user, err := s.store.FindOrCreateUser(r.Context(), req.TelegramID, req.Username, req.FirstName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}

	user, err := s.store.UserByTelegramID(r.Context(), telegramID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.DefaultCurrency != "" {
		if err := core.ValidateCurrency(req.DefaultCurrency); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	user, err := s.store.UpdateSettings(r.Context(), telegramID, core.Settings{
		DefaultCurrency: req.DefaultCurrency,
		DisplayMode:     req.DisplayMode,
		SortMode:        req.SortMode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, subs, ok := s.resolveSubscriptions(w, r)
	if !ok {
		return
	}

	today := core.DateOf(s.now())
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, s.toSubscriptionResponse(sub, today))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions":    out,
		"default_currency": user.Settings.DefaultCurrency,
	})
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}

	user, err := s.store.UserByTelegramID(r.Context(), telegramID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sub, err := s.toSubscription(req, user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := s.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	created.TelegramID = telegramID
	writeJSON(w, http.StatusCreated, s.toSubscriptionResponse(created, core.DateOf(s.now())))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	user, err := s.store.UserByTelegramID(r.Context(), telegramID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sub, err := s.toSubscription(req, user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sub.ID = id

	updated, err := s.store.UpdateSubscription(r.Context(), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	updated.TelegramID = telegramID
	writeJSON(w, http.StatusOK, s.toSubscriptionResponse(updated, core.DateOf(s.now())))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	user, err := s.store.UserByTelegramID(r.Context(), telegramID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.DeactivateSubscription(r.Context(), id, user.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleUpcoming lists subscriptions billing within the next seven days,
// with per-currency totals of the amounts coming due.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	_, subs, ok := s.resolveSubscriptions(w, r)
	if !ok {
		return
	}

	today := core.DateOf(s.now())
	entries := make([]upcomingEntry, 0)
	totals := make(map[string]float64)
	for _, sub := range subs {
		if !sub.HasAnchor() {
			continue
		}
		next, err := billing.NextOccurrence(sub.Anchor, sub.Cycle, today)
		if err != nil {
			continue
		}
		// days == 0 stays in: a bill landing today is the most urgent entry.
		days := billing.DaysUntil(today, next)
		if days < 0 || days > upcomingWindowDays {
			continue
		}
		entries = append(entries, upcomingEntry{
			subscriptionResponse: s.toSubscriptionResponse(sub, today),
			DaysUntil:            days,
		})
		totals[sub.Currency] += sub.Price
	}
	for code, amount := range totals {
		totals[code] = currency.Round2(amount)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upcoming": entries,
		"totals":   totals,
	})
}

// handleTotals reports monthly spend by currency, optionally collapsed
// into one currency with ?convert=EUR.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	_, subs, ok := s.resolveSubscriptions(w, r)
	if !ok {
		return
	}

	totals := services.MonthlyTotalsByCurrency(subs)
	resp := map[string]any{"totals": totals}

	if target := r.URL.Query().Get("convert"); target != "" {
		converted, err := s.aggregator.ConvertTotals(r.Context(), totals, target)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp["converted"] = map[string]any{
			"total":    converted.Total,
			"currency": converted.Currency,
			"failed":   converted.Failed,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resolveSubscriptions(w http.ResponseWriter, r *http.Request) (core.User, []core.Subscription, bool) {
	telegramID, ok := pathInt64(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return core.User{}, nil, false
	}

	user, err := s.store.UserByTelegramID(r.Context(), telegramID)
	if err != nil {
		writeDomainError(w, err)
		return core.User{}, nil, false
	}

	subs, err := s.store.SubscriptionsByUser(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return core.User{}, nil, false
	}
	return user, subs, true
}

func (s *Server) toSubscription(req subscriptionRequest, userID int64) (core.Subscription, error) {
	cycle, err := core.ParseCycle(req.Cycle)
	if err != nil {
		return core.Subscription{}, err
	}
	reminder, err := core.ParseReminder(req.RemindMe)
	if err != nil {
		return core.Subscription{}, err
	}

	var anchor core.Date
	if req.FirstBill != "" {
		t, err := time.Parse(dateLayout, req.FirstBill)
		if err != nil {
			return core.Subscription{}, core.ErrInvalidDate
		}
		anchor = core.DateOf(t)
	}

	sub := core.Subscription{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Anchor:      anchor,
		Cycle:       cycle,
		Reminder:    reminder,
		CategoryID:  req.CategoryID,
		Icon:        req.Icon,
		Color:       req.Color,
		Active:      true,
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	return sub, nil
}

func (s *Server) toSubscriptionResponse(sub core.Subscription, today core.Date) subscriptionResponse {
	resp := subscriptionResponse{
		ID:           sub.ID,
		Name:         sub.Name,
		Description:  sub.Description,
		Price:        sub.Price,
		Currency:     sub.Currency,
		Cycle:        sub.Cycle.String(),
		RemindMe:     sub.Reminder.String(),
		MonthlyPrice: currency.Round2(sub.Price * sub.Cycle.MonthlyFactor()),
		CategoryID:   sub.CategoryID,
		Category:     sub.Category,
		Icon:         sub.Icon,
		Color:        sub.Color,
	}
	if sub.HasAnchor() {
		resp.FirstBill = sub.Anchor.Format(dateLayout)
		if next, err := billing.NextOccurrence(sub.Anchor, sub.Cycle, today); err == nil {
			resp.NextBill = next.Format(dateLayout)
		}
	}
	return resp
}

func toUserResponse(user core.User) userResponse {
	return userResponse{
		TelegramID:      user.TelegramID,
		Username:        user.Username,
		FirstName:       user.FirstName,
		DefaultCurrency: user.Settings.DefaultCurrency,
		DisplayMode:     user.Settings.DisplayMode,
		SortMode:        user.Settings.SortMode,
	}
}
