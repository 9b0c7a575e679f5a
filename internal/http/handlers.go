package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"finledger/internal/core"
	"finledger/internal/services"
)

type messageResponse struct {
	Message string `json:"message"`
}

// currentUser resolves the session cookie to a user. A missing cookie
// means the request is unauthenticated.
func (s *Server) currentUser(r *http.Request) (core.User, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return core.User{}, core.ErrUnauthorized
	}
	return s.auth.CurrentUser(r.Context(), cookie.Value)
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// --- auth ---

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.auth.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Email: u.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	setSessionCookie(w, token, time.Now().Add(services.SessionTTL))
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Email: u.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		writeError(w, r, core.ErrUnauthorized)
		return
	}

	if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
		writeError(w, r, err)
		return
	}

	setSessionCookie(w, "", time.Unix(0, 0))
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

type meResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
}

// --- transactions ---

type addTransactionRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	AccountName string `json:"account_name"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err = s.ledger.RecordTransaction(r.Context(), u.ID, services.RecordTransactionInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		AccountName: req.AccountName,
		Date:        req.Date,
		Type:        req.Type,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "transaction added"})
}

type saveTransactionRequest struct {
	ID          string  `json:"id"`
	Amount      *string `json:"amount"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

func (s *Server) handleSaveTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentUser(r); err != nil {
		writeError(w, r, err)
		return
	}

	var req saveTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID == "" {
		writeError(w, r, fmt.Errorf("%w: transaction id is required", core.ErrInvalidInput))
		return
	}

	err := s.ledger.UpdateTransaction(r.Context(), req.ID, services.UpdateTransactionInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "transaction saved"})
}

type transactionDTO struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Type        string `json:"type"`
	AccountName string `json:"account_name"`
	Date        string `json:"date"`
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	transactions, err := s.ledger.ListTransactions(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, transactionDTO{
			ID:          t.ID,
			Amount:      t.Amount.String(),
			Category:    t.Category,
			Description: t.Description,
			Type:        string(t.Type),
			AccountName: t.AccountName,
			Date:        t.Date.Format(core.DateLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// --- categories and accounts ---

type addCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.AddCategory(r.Context(), u.ID, req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "category added"})
}

type addAccountRequest struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.AddAccount(r.Context(), u.ID, req.Name, req.Balance); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "account added"})
}

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	categories, err := s.ledger.ListCategories(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, categoryDTO{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": dtos})
}

type accountDTO struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	accounts, err := s.ledger.ListAccounts(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, accountDTO{Name: a.Name, Balance: a.Balance.String()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": dtos})
}

func (s *Server) handleDashboardStatistics(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.ledger.DashboardStatistics(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": stats})
}

// --- bulk import and export ---

// handleBulkAddTransactions accepts the CSV either as a multipart
// upload under the "file" field or as the raw request body.
func (s *Server) handleBulkAddTransactions(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var src io.Reader = r.Body
	if err := r.ParseMultipartForm(10 << 20); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrInvalidInput))
			return
		}
		defer file.Close()
		src = file
	}

	imported, err := s.ledger.ImportCSV(r.Context(), u.ID, src)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "import complete",
		"imported": imported,
	})
}

// handleExportCSV streams every transaction as CSV. No session check;
// the export covers all users.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)

	if err := s.ledger.ExportCSV(r.Context(), w); err != nil {
		writeError(w, r, err)
		return
	}
}
