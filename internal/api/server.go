// Package api is the HTTP boundary. It owns request parsing, owner
// identification and the translation of typed core outcomes into
// user-facing responses; the core never renders error markup.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aliasmail/aliasmaild/internal/accesskey"
	"github.com/aliasmail/aliasmaild/internal/accounts"
	"github.com/aliasmail/aliasmaild/internal/credentials"
	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/internal/mailbox"
	"github.com/aliasmail/aliasmaild/internal/retrieval"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// genericFailure is the single public failure message. It must not
// reveal whether the key, the alias or the provider configuration was
// the problem.
const genericFailure = `<p>Invalid credentials or no provider for this address.</p>`

// Server wires the HTTP handlers.
type Server struct {
	retrieval  *retrieval.Orchestrator
	accounts   *accounts.Service
	accessKeys *accesskey.Service
	creds      *credentials.Manager
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer creates the API server.
func NewServer(orch *retrieval.Orchestrator, accountsSvc *accounts.Service, keys *accesskey.Service, creds *credentials.Manager, logger *slog.Logger) *Server {
	s := &Server{
		retrieval:  orch,
		accounts:   accountsSvc,
		accessKeys: keys,
		creds:      creds,
		logger:     logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mail", s.handleMail)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("POST /api/accounts/{id}/active", s.handleSetActive)
	mux.HandleFunc("POST /api/accounts/{id}/catchall", s.handleSetCatchAll)
	mux.HandleFunc("GET /api/oauth/url", s.handleOAuthURL)
	mux.HandleFunc("GET /api/oauth/callback", s.handleOAuthCallback)
	mux.HandleFunc("POST /api/keys", s.handleIssueKey)
	mux.HandleFunc("GET /api/keys", s.handleListKeys)
	mux.HandleFunc("DELETE /api/keys/{id}", s.handleRevokeKey)
	mux.HandleFunc("GET /health", s.handleHealth)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleMail is the public unified endpoint: (email, platform, key) in,
// rendered content or a generic failure out.
func (s *Server) handleMail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	platform := r.URL.Query().Get("platform")
	key := r.URL.Query().Get("key")

	ownerID, err := s.accessKeys.ResolveOwner(r.Context(), email, platform, key)
	if err != nil {
		if !errors.Is(err, accesskey.ErrInvalid) {
			s.logger.Error("access key lookup failed", "error", err)
		}
		writeJSON(w, http.StatusOK, mailResponse{Messages: []string{genericFailure}})
		return
	}

	result, err := s.retrieval.FetchLatest(r.Context(), ownerID, email, platform)
	if err != nil {
		s.writeRetrievalError(w, err)
		return
	}

	if !result.Found() {
		nf := result.NotFound
		msg := fmt.Sprintf("<p>No recent mail from <b>%s</b> for <b>%s</b> in the last %dh.</p>",
			nf.Platform, nf.Alias, int(nf.Window.Hours()))
		writeJSON(w, http.StatusOK, mailResponse{Messages: []string{msg}})
		return
	}

	writeJSON(w, http.StatusOK, mailResponse{
		Messages: []string{result.Message.HTML},
		Preview:  result.Message.Text,
	})
}

// writeRetrievalError logs the structured kind and responds without
// distinguishing configuration failures from each other.
func (s *Server) writeRetrievalError(w http.ResponseWriter, err error) {
	var (
		badAlias   *retrieval.BadAliasError
		noProvider *retrieval.NoProviderError
		credErr    *credentials.Error
		connErr    *mailbox.ConnectionError
		transErr   *mailbox.TransportError
	)
	switch {
	case errors.As(err, &badAlias):
		s.logger.Info("retrieval rejected", "kind", "bad_alias", "error", err)
		writeJSON(w, http.StatusOK, mailResponse{Messages: []string{genericFailure}})
	case errors.As(err, &noProvider):
		s.logger.Info("retrieval rejected", "kind", "no_provider", "error", err)
		writeJSON(w, http.StatusOK, mailResponse{Messages: []string{genericFailure}})
	case errors.As(err, &credErr):
		s.logger.Warn("retrieval rejected", "kind", "credential", "reason", credErr.Reason.String(), "error", err)
		writeJSON(w, http.StatusOK, mailResponse{Messages: []string{genericFailure}})
	case errors.As(err, &connErr), errors.As(err, &transErr):
		s.logger.Warn("retrieval failed", "kind", "transport", "error", err)
		writeJSON(w, http.StatusBadGateway, mailResponse{Messages: []string{"<p>Temporary mailbox error, try again shortly.</p>"}})
	default:
		s.logger.Error("retrieval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type mailResponse struct {
	Messages []string `json:"messages"`
	// Preview is the plain-text rendering of the selected message
	Preview string `json:"preview,omitempty"`
}

type accountResponse struct {
	ID        int64  `json:"id"`
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	Active    bool   `json:"active"`
	CatchAll  bool   `json:"catch_all"`
	IMAPHost  string `json:"imap_host"`
	IMAPPort  int    `json:"imap_port"`
	UseTLS    bool   `json:"use_tls"`
	CreatedAt string `json:"created_at"`
}

type createAccountRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	IMAPHost string `json:"imap_host"`
	IMAPPort int    `json:"imap_port"`
	UseTLS   *bool  `json:"use_tls"`
	CatchAll bool   `json:"catch_all"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Register(r.Context(), accounts.RegisterInput{
		OwnerID:  ownerID,
		Address:  req.Address,
		Password: req.Password,
		IMAPHost: req.IMAPHost,
		IMAPPort: req.IMAPPort,
		UseTLS:   req.UseTLS,
		CatchAll: req.CatchAll,
	})
	if errors.Is(err, database.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "account already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	list, err := s.accounts.List(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]accountResponse, 0, len(list))
	for _, account := range list {
		out = append(out, toAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateAccountRequest struct {
	Address  *string `json:"address"`
	Password *string `json:"password"`
	IMAPHost *string `json:"imap_host"`
	IMAPPort *int    `json:"imap_port"`
	UseTLS   *bool   `json:"use_tls"`
	Active   *bool   `json:"active"`
	CatchAll *bool   `json:"catch_all"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Update(r.Context(), ownerID, id, accounts.UpdateInput{
		Address:  req.Address,
		Password: req.Password,
		IMAPHost: req.IMAPHost,
		IMAPPort: req.IMAPPort,
		UseTLS:   req.UseTLS,
		Active:   req.Active,
		CatchAll: req.CatchAll,
	})
	if !s.writeAccountError(w, err) {
		writeJSON(w, http.StatusOK, toAccountResponse(account))
	}
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.accounts.Delete(r.Context(), ownerID, id)
	if accounts.NotFound(err) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleRequest struct {
	Value bool `json:"value"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, s.accounts.SetActive)
}

func (s *Server) handleSetCatchAll(w http.ResponseWriter, r *http.Request) {
	s.handleToggle(w, r, s.accounts.SetCatchAll)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, ownerID, id int64, value bool) (*models.MailAccount, error)) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := toggle(r.Context(), ownerID, id, req.Value)
	if !s.writeAccountError(w, err) {
		writeJSON(w, http.StatusOK, toAccountResponse(account))
	}
}

// writeAccountError handles the shared account service failures and
// reports whether a response was written.
func (s *Server) writeAccountError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case accounts.NotFound(err):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, accounts.ErrCatchAllInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "account already registered")
	default:
		s.logger.Error("account operation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
	return true
}

func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	address := r.URL.Query().Get("email")
	if address == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": s.creds.AuthURL(ownerID, address)})
}

// handleOAuthCallback is the redirect target of the provider consent
// screen. The owner identity travels in the signed-out state blob, not
// in a header.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state query parameters are required")
		return
	}

	ownerID, address, err := s.creds.ExchangeCode(r.Context(), code, state)
	if err != nil {
		s.logger.Error("oauth code exchange failed", "error", err)
		writeError(w, http.StatusBadRequest, "authorization failed")
		return
	}

	s.logger.Info("mailbox connected", "owner_id", ownerID, "address", address)
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "address": address})
}

type issueKeyRequest struct {
	Alias    string `json:"alias"`
	Platform string `json:"platform"`
}

type accessKeyResponse struct {
	ID       int64  `json:"id"`
	Alias    string `json:"alias"`
	Platform string `json:"platform"`
	Secret   string `json:"secret,omitempty"`
	Active   bool   `json:"active"`
}

func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	var req issueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := s.accessKeys.Issue(r.Context(), ownerID, req.Alias, req.Platform)
	if errors.Is(err, database.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "a key for this platform and alias already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The secret is shown once, at issuance.
	writeJSON(w, http.StatusCreated, accessKeyResponse{
		ID:       key.ID,
		Alias:    key.Alias,
		Platform: key.Platform,
		Secret:   key.Secret,
		Active:   key.Active,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	keys, err := s.accessKeys.List(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("failed to list access keys", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]accessKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, accessKeyResponse{
			ID:       key.ID,
			Alias:    key.Alias,
			Platform: key.Platform,
			Active:   key.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.accessKeys.Revoke(r.Context(), ownerID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "access key not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to revoke access key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerID reads the authenticated owner from the X-Owner-ID header.
// Authentication itself is terminated upstream.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-Owner-ID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid owner")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func toAccountResponse(account *models.MailAccount) accountResponse {
	return accountResponse{
		ID:        account.ID,
		Address:   account.Address,
		Kind:      string(account.Kind),
		Active:    account.Active,
		CatchAll:  account.CatchAll,
		IMAPHost:  account.IMAPHost,
		IMAPPort:  account.IMAPPort,
		UseTLS:    account.UseTLS,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
