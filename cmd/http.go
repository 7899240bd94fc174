package cmd

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
	"codesensei/internal/usecase/review"
)

type dashboardService interface {
	IngestWebhookEvent(context.Context, review.WebhookEventInput) (review.WebhookEventResult, error)
	AuthenticateAPIToken(context.Context, string) (ports.User, error)
	GetAnalysisForUser(context.Context, string, uint64) (review.AnalysisView, error)
	ClaimFinding(context.Context, review.RewardActionInput) (review.RewardActionResult, error)
	MarkFindingFixed(context.Context, review.RewardActionInput) (review.RewardActionResult, error)
	UnlockLesson(context.Context, review.RewardActionInput) (string, error)
	GetWallet(context.Context, uint64) (review.WalletView, error)
	Leaderboard(context.Context, int) ([]review.LeaderboardEntry, error)
}

type dashboardHTTPHandler struct {
	svc           dashboardService
	webhookSecret string
}

type webhookResponse struct {
	DeliveryID string `json:"delivery_id"`
	Duplicate  bool   `json:"duplicate"`
	Enqueued   bool   `json:"enqueued"`
	JobID      string `json:"job_id,omitempty"`
}

type webhookStatusResponse struct {
	Status     string `json:"status"`
	Endpoint   string `json:"endpoint"`
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

type rewardActionResponse struct {
	AlreadyClaimed bool            `json:"already_claimed"`
	CoinsAwarded   int64           `json:"coins_awarded"`
	XPAwarded      int64           `json:"xp_awarded"`
	Wallet         walletResponse  `json:"wallet"`
	NewBadges      []badgeResponse `json:"new_badges"`
}

type walletResponse struct {
	XP            int64 `json:"xp"`
	Coins         int64 `json:"coins"`
	TotalEarned   int64 `json:"total_earned"`
	TotalDebtPaid int64 `json:"total_debt_paid"`
	StreakCount   int64 `json:"streak_count"`
}

type badgeResponse struct {
	BadgeID     string `json:"badge_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	EarnedAt    string `json:"earned_at"`
}

type userCtxKey struct{}

func newDashboardHandler(svc dashboardService, webhookSecret string) http.Handler {
	h := &dashboardHTTPHandler{
		svc:           svc,
		webhookSecret: webhookSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/webhooks/github", h.handleWebhookStatus)
	r.Post("/webhooks/github", h.handleGitHubWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAPIToken)
		r.Get("/analyses/{analysisID}", h.handleGetAnalysis)
		r.Post("/analyses/{analysisID}/findings/{index}/claim", h.handleClaimFinding)
		r.Post("/analyses/{analysisID}/findings/{index}/fixed", h.handleMarkFixed)
		r.Post("/analyses/{analysisID}/findings/{index}/lesson", h.handleUnlockLesson)
		r.Get("/wallet", h.handleGetWallet)
		r.Get("/leaderboard", h.handleLeaderboard)
	})
	return r
}

func (h *dashboardHTTPHandler) handleWebhookStatus(w http.ResponseWriter, _ *http.Request) {
	message := "webhook endpoint is ready"
	if strings.TrimSpace(h.webhookSecret) == "" {
		message = "webhook secret is not configured; signature validation is disabled"
	}
	writeAPIJSON(w, http.StatusOK, webhookStatusResponse{
		Status:     "ok",
		Endpoint:   "/webhooks/github",
		Configured: strings.TrimSpace(h.webhookSecret) != "",
		Message:    message,
	})
}

func (h *dashboardHTTPHandler) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeAPIError(w, http.StatusInternalServerError, "review service is not configured")
		return
	}

	deliveryID := strings.TrimSpace(r.Header.Get("X-GitHub-Delivery"))
	if deliveryID == "" {
		writeAPIError(w, http.StatusBadRequest, "missing X-GitHub-Delivery")
		return
	}
	eventType := strings.TrimSpace(r.Header.Get("X-GitHub-Event"))
	if eventType == "" {
		writeAPIError(w, http.StatusBadRequest, "missing X-GitHub-Event")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := validateGitHubSignature(h.webhookSecret, r.Header.Get("X-Hub-Signature-256"), payload); err != nil {
		writeAPIError(w, http.StatusUnauthorized, err.Error())
		return
	}

	out, err := h.svc.IngestWebhookEvent(r.Context(), review.WebhookEventInput{
		DeliveryID: deliveryID,
		EventType:  eventType,
		Payload:    payload,
	})
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeAPIJSON(w, http.StatusOK, webhookResponse{
		DeliveryID: deliveryID,
		Duplicate:  out.Duplicate,
		Enqueued:   out.Enqueued,
		JobID:      out.JobID,
	})
}

func (h *dashboardHTTPHandler) requireAPIToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "Bearer "
		if len(token) <= len(prefix) || !strings.EqualFold(token[:len(prefix)], prefix) {
			writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := h.svc.AuthenticateAPIToken(r.Context(), token[len(prefix):])
		if err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				writeAPIError(w, http.StatusUnauthorized, "invalid api token")
				return
			}
			writeAPIError(w, http.StatusInternalServerError, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

func userFromRequest(r *http.Request) (ports.User, bool) {
	user, ok := r.Context().Value(userCtxKey{}).(ports.User)
	return user, ok
}

func (h *dashboardHTTPHandler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	view, err := h.svc.GetAnalysisForUser(r.Context(), chi.URLParam(r, "analysisID"), user.UserID)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, view)
}

func (h *dashboardHTTPHandler) handleClaimFinding(w http.ResponseWriter, r *http.Request) {
	h.handleRewardAction(w, r, h.svc.ClaimFinding)
}

func (h *dashboardHTTPHandler) handleMarkFixed(w http.ResponseWriter, r *http.Request) {
	h.handleRewardAction(w, r, h.svc.MarkFindingFixed)
}

func (h *dashboardHTTPHandler) handleRewardAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, review.RewardActionInput) (review.RewardActionResult, error),
) {
	input, ok := rewardActionInputFromRequest(w, r)
	if !ok {
		return
	}

	out, err := action(r.Context(), input)
	if err != nil {
		writeReviewError(w, err)
		return
	}

	badges := make([]badgeResponse, 0, len(out.NewBadges))
	for _, b := range out.NewBadges {
		badges = append(badges, badgeResponse{
			BadgeID:     b.BadgeID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			EarnedAt:    b.EarnedAt,
		})
	}

	writeAPIJSON(w, http.StatusOK, rewardActionResponse{
		AlreadyClaimed: out.AlreadyClaimed,
		CoinsAwarded:   out.Reward.Coins,
		XPAwarded:      out.Reward.XP,
		Wallet: walletResponse{
			XP:            out.Wallet.XP,
			Coins:         out.Wallet.Coins,
			TotalEarned:   out.Wallet.TotalEarned,
			TotalDebtPaid: out.Wallet.TotalDebtPaid,
			StreakCount:   out.Wallet.StreakCount,
		},
		NewBadges: badges,
	})
}

func (h *dashboardHTTPHandler) handleUnlockLesson(w http.ResponseWriter, r *http.Request) {
	input, ok := rewardActionInputFromRequest(w, r)
	if !ok {
		return
	}

	lesson, err := h.svc.UnlockLesson(r.Context(), input)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]string{"lesson": lesson})
}

func (h *dashboardHTTPHandler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(r)
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	view, err := h.svc.GetWallet(r.Context(), user.UserID)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, view)
}

func (h *dashboardHTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, entries)
}

func rewardActionInputFromRequest(w http.ResponseWriter, r *http.Request) (review.RewardActionInput, bool) {
	user, ok := userFromRequest(r)
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
		return review.RewardActionInput{}, false
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeAPIError(w, http.StatusBadRequest, "invalid finding index")
		return review.RewardActionInput{}, false
	}

	return review.RewardActionInput{
		AnalysisID:   chi.URLParam(r, "analysisID"),
		FindingIndex: index,
		UserID:       user.UserID,
	}, true
}

func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrAnalysisNotFound),
		errors.Is(err, ports.ErrRepositoryNotFound),
		errors.Is(err, domainreview.ErrFindingOutOfRange):
		writeAPIError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domainreview.ErrNotRepositoryOwner):
		writeAPIError(w, http.StatusForbidden, err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, err.Error())
	}
}

// validateGitHubSignature checks X-Hub-Signature-256 against the shared
// secret. Verification fails closed: no secret, no signature, or a wrong
// signature all reject the request.
func validateGitHubSignature(secret string, signatureHeader string, payload []byte) error {
	normalizedSecret := strings.TrimSpace(secret)
	if normalizedSecret == "" {
		return errors.New("webhook secret is not configured")
	}

	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return errors.New("missing X-Hub-Signature-256")
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.EqualFold(signature[:len(prefix)], prefix) {
		return errors.New("invalid X-Hub-Signature-256 format")
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(signature[len(prefix):]))
	if err != nil {
		return errors.New("invalid X-Hub-Signature-256 digest")
	}

	mac := hmac.New(sha256.New, []byte(normalizedSecret))
	if _, err := mac.Write(payload); err != nil {
		return errs.Wrap(err, "compute github webhook signature")
	}

	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return errors.New("invalid X-Hub-Signature-256")
	}
	return nil
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
