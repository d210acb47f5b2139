package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"infobroker/internal/moderation"
	"infobroker/internal/platform/middleware"
	"infobroker/internal/user"
	dErrors "infobroker/pkg/domainerrors"
	"infobroker/pkg/secrets"
)

// TokenIssuer issues and validates admin bearer tokens.
type TokenIssuer interface {
	IssueAdminToken(expiresIn time.Duration) (string, error)
	ValidateToken(tokenString string) error
}

// Handler is the HTTP surface over the Controller. Authentication is a JWT
// obtained from /admin/login with the shared secret; the controller's own
// identity gate runs with the configured admin id for every call.
type Handler struct {
	controller *Controller
	tokens     TokenIssuer
	secretHash string
	tokenTTL   time.Duration
	adminID    int64
	logger     *slog.Logger
}

func NewHandler(controller *Controller, tokens TokenIssuer, secretHash string, tokenTTL time.Duration, adminID int64, logger *slog.Logger) *Handler {
	return &Handler{
		controller: controller,
		tokens:     tokens,
		secretHash: secretHash,
		tokenTTL:   tokenTTL,
		adminID:    adminID,
		logger:     logger,
	}
}

// Register mounts the admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.tokens, h.logger))
		r.Get("/admin/stats", h.handleStats)
		r.Get("/admin/users", h.handleListUsers)
		r.Get("/admin/users/{id}", h.handleUserInfo)
		r.Post("/admin/users/{id}/credits", h.handleGrantCredits)
		r.Post("/admin/users/{id}/credits/deduct", h.handleDeductCredits)
		r.Post("/admin/users/{id}/credits/unlimited", h.handleGrantUnlimited)
		r.Post("/admin/users/{id}/ban", h.handleBan)
		r.Post("/admin/users/{id}/unban", h.handleUnban)
		r.Get("/admin/banned", h.handleListBanned)
		r.Get("/admin/protected", h.handleListProtected)
		r.Post("/admin/protected", h.handleProtect)
		r.Delete("/admin/protected/{value}", h.handleUnprotect)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := secrets.Verify(req.Secret, h.secretHash); err != nil {
		h.logger.WarnContext(ctx, "admin login rejected", "request_id", middleware.GetRequestID(ctx))
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	token, err := h.tokens.IssueAdminToken(h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue admin token", "error", err)
		writeError(w, dErrors.New(dErrors.CodeInternal, "token issuance failed"))
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: time.Now().Add(h.tokenTTL)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.controller.UsageStats(r.Context(), h.adminID)
	if err != nil {
		writeError(w, err)
		return
	}
	usage := make(map[string]int64, len(stats.UsageByService))
	for _, sc := range stats.UsageByService {
		usage[sc.ServiceKey] = sc.Count
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		TotalUsers:      stats.TotalUsers,
		BannedUsers:     stats.BannedUsers,
		ProtectedValues: stats.ProtectedValues,
		TotalLookups:    stats.TotalLookups,
		UsageByService:  usage,
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.controller.ListUsers(r.Context(), h.adminID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*UserInfoResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserInfoResponse(u))
	}
	writeJSON(w, http.StatusOK, UsersListResponse{Users: out, Total: len(out)})
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	u, err := h.controller.UserInfo(r.Context(), h.adminID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserInfoResponse(u))
}

func (h *Handler) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	h.creditOp(w, r, h.controller.GrantCredits)
}

func (h *Handler) handleDeductCredits(w http.ResponseWriter, r *http.Request) {
	h.creditOp(w, r, h.controller.DeductCredits)
}

func (h *Handler) creditOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, requesterID, userID, amount int64) (int64, error)) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	var req CreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	balance, err := op(r.Context(), h.adminID, userID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

func (h *Handler) handleGrantUnlimited(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	balance, err := h.controller.GrantUnlimited(r.Context(), h.adminID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.controller.Ban(r.Context(), h.adminID, userID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnban(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.controller.Unban(r.Context(), h.adminID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListBanned(w http.ResponseWriter, r *http.Request) {
	banned, err := h.controller.ListBanned(r.Context(), h.adminID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, banned)
}

func (h *Handler) handleListProtected(w http.ResponseWriter, r *http.Request) {
	records, err := h.controller.ListProtected(r.Context(), h.adminID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ProtectedRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ProtectedRecordResponse{
			Value:       rec.Value,
			ProtectedBy: rec.ProtectedBy,
			ProtectedAt: rec.ProtectedAt,
			Reason:      rec.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleProtect(w http.ResponseWriter, r *http.Request) {
	var req ProtectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	outcome, err := h.controller.Protect(r.Context(), h.adminID, req.Value, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProtectResponse{Created: outcome == moderation.ProtectCreated})
}

func (h *Handler) handleUnprotect(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	removed, err := h.controller.Unprotect(r.Context(), h.adminID, value)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "value is not protected"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return 0, false
	}
	return id, true
}

func toUserInfoResponse(u *user.User) *UserInfoResponse {
	return &UserInfoResponse{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Credits:      u.Credits,
		TotalLookups: u.TotalLookups,
		Banned:       u.Banned,
		BanReason:    u.BanReason,
		BannedAt:     u.BannedAt,
		JoinedAt:     u.JoinedAt,
		LastActive:   u.LastActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates coded errors into the JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}
