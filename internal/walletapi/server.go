package walletapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/wallet/internal/ledgerapi"
	"github.com/MarkoPoloResearchLab/wallet/internal/notify"
	"github.com/MarkoPoloResearchLab/wallet/internal/session"
	"github.com/MarkoPoloResearchLab/wallet/internal/store/cachestore"
	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

// closeDwellMargin pads the async close past the settle dwell floor so the
// gate's own clock check never races the timer.
const closeDwellMargin = 50 * time.Millisecond

// Server is the HTTP façade the festival UI talks to. It drives the
// compose → authorize → submit flow against the ledger backend and serves
// the cached read models in between.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	sessions *session.Controller
	ledger   *ledgerapi.Client
	cache    *cachestore.Store
	feed     *notify.Channel
	gate     *walletflow.AuthorizationGate
	validate *validator.Validate
	metrics  *apiMetrics

	mutex  sync.Mutex
	viewer *walletflow.UserID
}

// NewServer wires the façade. The notification feed may be nil when Redis
// is not configured.
func NewServer(cfg Config, logger *zap.Logger, sessions *session.Controller, ledger *ledgerapi.Client, cache *cachestore.Store, feed *notify.Channel) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil || ledger == nil || cache == nil {
		return nil, errors.New("sessions, ledger, and cache dependencies are required")
	}

	server := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		ledger:   ledger,
		cache:    cache,
		feed:     feed,
		metrics:  newAPIMetrics(),
	}

	millisNow := func() int64 { return time.Now().UnixMilli() }
	submitter, err := walletflow.NewSettlementSubmitter(ledger, millisNow)
	if err != nil {
		return nil, fmt.Errorf("submitter: %w", err)
	}
	gate, err := walletflow.NewAuthorizationGate(submitter, millisNow,
		walletflow.WithFlowLogger(&zapFlowLogger{logger: logger}),
		walletflow.WithRefreshHook(server.refreshAfterSettle))
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	server.gate = gate

	server.validate = validator.New()
	if err := server.validate.RegisterValidation("pin4", pinRule); err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}

	sessions.OnEnd(func(reason session.EndReason) {
		server.setViewer(nil)
		if server.feed != nil {
			if err := server.feed.Close(); err != nil && !errors.Is(err, notify.ErrChannelClosed) {
				logger.Warn("credit feed close failed", zap.Error(err))
			}
		}
		logger.Info("viewer state cleared", zap.String("reason", string(reason)))
	})

	return server, nil
}

// Router assembles the gin engine.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(server.metrics.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/auth/login", server.handleLogin)

	authed := api.Group("")
	authed.Use(server.requireSession)
	authed.POST("/auth/logout", server.handleLogout)
	authed.GET("/session", server.handleSession)
	authed.GET("/wallet", server.handleWallet)
	authed.GET("/wallet/history", server.handleHistory)
	authed.GET("/wallet/receive-qr", server.handleReceiveQR)
	authed.POST("/wallet/send", server.handleSend)
	authed.POST("/wallet/topup", server.handleTopUp)
	authed.POST("/wallet/send-group", server.handleGroupSend)
	authed.POST("/wallet/admin-reset-balances", server.handleAdminReset)
	authed.GET("/user/by-role", server.handleMembersByRole)
	authed.GET("/user/by-role-in-my-department", server.handleMembersByRoleInMyDepartment)

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("walletd listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if !server.bindAndValidate(ctx, &request) {
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.LedgerTimeout)
	defer cancel()
	result, err := server.ledger.Login(requestCtx, ledgerapi.LoginRequest{
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		server.metrics.observeLogin(false)
		server.respondLedgerError(ctx, err)
		return
	}
	if _, err := server.sessions.Start(result.Token); err != nil {
		server.metrics.observeLogin(false)
		server.logger.Warn("session start failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, messageResponse("Login failed. Try again."))
		return
	}
	viewerID := result.Profile.Identity.UserID
	server.setViewer(&viewerID)
	if err := server.cache.SaveProfile(ctx.Request.Context(), result.Profile); err != nil {
		server.logger.Warn("profile cache save failed", zap.Error(err))
	}
	if server.feed != nil {
		if err := server.feed.Open(ctx.Request.Context(), viewerID); err != nil {
			server.logger.Warn("credit feed join failed", zap.Error(err))
		}
	}
	server.metrics.observeLogin(true)
	ctx.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  profileToPayload(result.Profile),
	})
}

func (server *Server) handleLogout(ctx *gin.Context) {
	if err := server.sessions.Logout(); err != nil {
		ctx.JSON(http.StatusUnauthorized, messageResponse("No active session."))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

func (server *Server) handleSession(ctx *gin.Context) {
	active, ok := server.sessions.Current()
	if !ok {
		ctx.JSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"expiresAt": active.ExpiresAt})
}

func (server *Server) handleWallet(ctx *gin.Context) {
	viewer, ok := server.currentViewer()
	if !ok {
		ctx.JSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return
	}
	forceRefresh := ctx.Query("refresh") == "1"
	if !forceRefresh {
		profile, found, err := server.cache.GetProfile(ctx.Request.Context(), viewer)
		if err != nil {
			server.logger.Warn("profile cache read failed", zap.Error(err))
		}
		if found {
			ctx.JSON(http.StatusOK, gin.H{"user": profileToPayload(profile)})
			return
		}
	}
	profile, err := server.reloadProfile(ctx.Request.Context())
	if err != nil {
		server.respondLedgerError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": profileToPayload(profile)})
}

func (server *Server) handleHistory(ctx *gin.Context) {
	viewer, ok := server.currentViewer()
	if !ok {
		ctx.JSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return
	}
	query := ledgerapi.HistoryQuery{
		Search: ctx.Query("search"),
		Type:   ctx.Query("type"),
		From:   ctx.Query("from"),
		To:     ctx.Query("to"),
		Page:   intQuery(ctx, "page", 1),
		Limit:  intQuery(ctx, "limit", server.cfg.HistoryLimit),
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.LedgerTimeout)
	defer cancel()
	page, err := server.ledger.FetchHistory(requestCtx, query)
	if err != nil {
		server.respondLedgerError(ctx, err)
		return
	}
	server.metrics.historyFetches.Inc()
	if err := server.cache.ReplaceHistory(ctx.Request.Context(), viewer, page.Records); err != nil {
		server.logger.Warn("history cache replace failed", zap.Error(err))
	}
	transactions := make([]transactionPayload, 0, len(page.Records))
	for _, record := range page.Records {
		transactions = append(transactions, recordToPayload(record, viewer))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"pagination":   page.Pagination,
	})
}

func (server *Server) handleReceiveQR(ctx *gin.Context) {
	viewer, ok := server.currentViewer()
	if !ok {
		ctx.JSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return
	}
	png, err := qrcode.Encode(viewer.String(), qrcode.Medium, server.cfg.ReceiveQRPixel)
	if err != nil {
		server.logger.Error("qr encode failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, messageResponse("Could not render the QR code."))
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

func (server *Server) handleSend(ctx *gin.Context) {
	profile, ok := server.viewerProfile(ctx)
	if !ok {
		return
	}
	var request sendRequest
	if !server.bindAndValidate(ctx, &request) {
		return
	}
	amount, err := walletflow.ParseAmount(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	intent, err := walletflow.NewSendIntent(profile.Identity, request.ReceiverID, amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	server.runSubmission(ctx, intent, profile.Balance, request.SPin)
}

func (server *Server) handleTopUp(ctx *gin.Context) {
	profile, ok := server.viewerProfile(ctx)
	if !ok {
		return
	}
	if !walletflow.CanPerform(walletflow.CapabilityTopUp, profile) {
		ctx.JSON(http.StatusForbidden, messageResponse("You are not allowed to top up wallets."))
		return
	}
	var request topUpRequest
	if !server.bindAndValidate(ctx, &request) {
		return
	}
	amount, err := walletflow.ParseAmount(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	intent, err := walletflow.NewTopUpIntent(amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	server.runSubmission(ctx, intent, profile.Balance, request.SPin)
}

func (server *Server) handleGroupSend(ctx *gin.Context) {
	profile, ok := server.viewerProfile(ctx)
	if !ok {
		return
	}
	if !walletflow.CanPerform(walletflow.CapabilityGroupSend, profile) {
		ctx.JSON(http.StatusForbidden, messageResponse("You are not allowed to send to groups."))
		return
	}
	var request groupSendRequest
	if !server.bindAndValidate(ctx, &request) {
		return
	}
	recipients := make([]walletflow.Recipient, 0, len(request.Recipients))
	for _, wire := range request.Recipients {
		receiverID, err := walletflow.NewUserID(wire.ReceiverID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
			return
		}
		amount, err := walletflow.ParseAmount(wire.Amount)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
			return
		}
		recipients = append(recipients, walletflow.Recipient{ReceiverID: receiverID, Amount: amount})
	}
	intent, err := walletflow.NewGroupSendIntent(profile.Balance, recipients)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	server.runSubmission(ctx, intent, profile.Balance, request.SPin)
}

func (server *Server) handleAdminReset(ctx *gin.Context) {
	profile, ok := server.viewerProfile(ctx)
	if !ok {
		return
	}
	if !walletflow.CanPerform(walletflow.CapabilityAdminReset, profile) {
		ctx.JSON(http.StatusForbidden, messageResponse("You are not allowed to reset balances."))
		return
	}
	var request adminResetRequest
	if !server.bindAndValidate(ctx, &request) {
		return
	}
	target := walletflow.NewResetTargetAll()
	if len(request.UserIDs) > 0 {
		userIDs := make([]walletflow.UserID, 0, len(request.UserIDs))
		for _, raw := range request.UserIDs {
			userID, err := walletflow.NewUserID(raw)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
				return
			}
			userIDs = append(userIDs, userID)
		}
		listTarget, err := walletflow.NewResetTargetList(userIDs)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
			return
		}
		target = listTarget
	}
	intent, err := walletflow.NewAdminResetIntent(target, request.Reason)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	server.runSubmission(ctx, intent, profile.Balance, request.SPin)
}

func (server *Server) handleMembersByRole(ctx *gin.Context) {
	server.respondMembers(ctx, func(requestCtx context.Context, role string) ([]walletflow.Profile, error) {
		return server.ledger.MembersByRole(requestCtx, role)
	})
}

func (server *Server) handleMembersByRoleInMyDepartment(ctx *gin.Context) {
	server.respondMembers(ctx, func(requestCtx context.Context, role string) ([]walletflow.Profile, error) {
		return server.ledger.MembersByRoleInMyDepartment(requestCtx, role)
	})
}

func (server *Server) respondMembers(ctx *gin.Context, fetch func(ctx context.Context, role string) ([]walletflow.Profile, error)) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), server.cfg.LedgerTimeout)
	defer cancel()
	members, err := fetch(requestCtx, ctx.Query("role"))
	if err != nil {
		server.respondLedgerError(ctx, err)
		return
	}
	payloads := make([]userPayload, 0, len(members))
	for _, member := range members {
		payloads = append(payloads, profileToPayload(member))
	}
	ctx.JSON(http.StatusOK, payloads)
}

// runSubmission drives one intent through the gate: stage, confirm with the
// S-Pin, report the terminal outcome. On success the gate stays settled
// until the dwell floor passes, then closes in the background and triggers
// the cache refresh.
func (server *Server) runSubmission(ctx *gin.Context, intent walletflow.TransactionIntent, balance walletflow.AmountPaise, rawPin string) {
	kind := intent.Kind().String()
	if err := server.gate.Begin(intent, balance); err != nil {
		ctx.JSON(http.StatusConflict, messageResponse("Another transaction is in progress."))
		return
	}
	outcome, err := server.gate.Confirm(ctx.Request.Context(), rawPin)
	if err != nil {
		_ = server.gate.Cancel()
		if errors.Is(err, walletflow.ErrGateBusy) {
			ctx.JSON(http.StatusConflict, messageResponse("Another transaction is in progress."))
			return
		}
		ctx.JSON(http.StatusBadRequest, messageResponse(validationMessage(err)))
		return
	}
	server.metrics.observeSubmission(kind, outcome.Succeeded)
	if !outcome.Succeeded {
		_ = server.gate.Cancel()
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": outcome.Message})
		return
	}
	time.AfterFunc(walletflow.DefaultSettleDwell+closeDwellMargin, func() {
		if err := server.gate.Close(context.Background()); err != nil {
			server.logger.Warn("gate close failed", zap.Error(err))
		}
	})
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

// refreshAfterSettle is the gate's refresh hook: drop the cached balance
// and refetch both read models from the ledger.
func (server *Server) refreshAfterSettle(ctx context.Context) {
	viewer, ok := server.currentViewer()
	if !ok {
		return
	}
	if err := server.cache.InvalidateProfile(ctx, viewer); err != nil {
		server.logger.Warn("profile invalidate failed", zap.Error(err))
	}
	if _, err := server.reloadProfile(ctx); err != nil {
		server.logger.Warn("profile refetch failed", zap.Error(err))
	}
	requestCtx, cancel := context.WithTimeout(ctx, server.cfg.LedgerTimeout)
	defer cancel()
	page, err := server.ledger.FetchHistory(requestCtx, ledgerapi.HistoryQuery{Limit: server.cfg.HistoryLimit})
	if err != nil {
		server.logger.Warn("history refetch failed", zap.Error(err))
		return
	}
	if err := server.cache.ReplaceHistory(ctx, viewer, page.Records); err != nil {
		server.logger.Warn("history cache replace failed", zap.Error(err))
	}
}

func (server *Server) reloadProfile(ctx context.Context) (walletflow.Profile, error) {
	requestCtx, cancel := context.WithTimeout(ctx, server.cfg.LedgerTimeout)
	defer cancel()
	profile, err := server.ledger.FetchProfile(requestCtx)
	if err != nil {
		return walletflow.Profile{}, err
	}
	if err := server.cache.SaveProfile(ctx, profile); err != nil {
		server.logger.Warn("profile cache save failed", zap.Error(err))
	}
	return profile, nil
}

func (server *Server) requireSession(ctx *gin.Context) {
	if _, ok := server.sessions.Current(); !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return
	}
	ctx.Next()
}

// viewerProfile resolves the viewer snapshot for a submission, preferring
// the cache and falling back to the ledger.
func (server *Server) viewerProfile(ctx *gin.Context) (walletflow.Profile, bool) {
	viewer, ok := server.currentViewer()
	if !ok {
		ctx.JSON(http.StatusUnauthorized, messageResponse("Session expired. Login again."))
		return walletflow.Profile{}, false
	}
	profile, found, err := server.cache.GetProfile(ctx.Request.Context(), viewer)
	if err != nil {
		server.logger.Warn("profile cache read failed", zap.Error(err))
	}
	if found {
		return profile, true
	}
	profile, err = server.reloadProfile(ctx.Request.Context())
	if err != nil {
		server.respondLedgerError(ctx, err)
		return walletflow.Profile{}, false
	}
	return profile, true
}

func (server *Server) setViewer(viewer *walletflow.UserID) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.viewer = viewer
}

func (server *Server) currentViewer() (walletflow.UserID, bool) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.viewer == nil {
		return walletflow.UserID{}, false
	}
	return *server.viewer, true
}

func (server *Server) bindAndValidate(ctx *gin.Context, request any) bool {
	if err := ctx.ShouldBindJSON(request); err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse("Expected a JSON body."))
		return false
	}
	if err := server.validate.Struct(request); err != nil {
		ctx.JSON(http.StatusBadRequest, messageResponse(fieldMessage(err)))
		return false
	}
	return true
}

func (server *Server) respondLedgerError(ctx *gin.Context, err error) {
	var serverError *ledgerapi.ServerError
	if errors.As(err, &serverError) {
		ctx.JSON(serverError.StatusCode, messageResponse(serverError.ServerMessage()))
		return
	}
	server.logger.Error("ledger call failed", zap.Error(err))
	ctx.JSON(http.StatusBadGateway, messageResponse("Ledger unavailable. Try again."))
}

func messageResponse(message string) gin.H {
	return gin.H{"message": message}
}

// pinRule backs the "pin4" validator tag with the same rule the domain
// enforces: exactly four ASCII digits.
func pinRule(level validator.FieldLevel) bool {
	_, err := walletflow.NewSPin(level.Field().String())
	return err == nil
}

func fieldMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		if first.Tag() == "pin4" {
			return "S-Pin must be exactly 4 digits."
		}
		return fmt.Sprintf("Invalid value for %s.", first.Field())
	}
	return "Invalid request."
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, walletflow.ErrSelfTransfer):
		return "You cannot send money to yourself."
	case errors.Is(err, walletflow.ErrInvalidAmount):
		return "Enter a valid amount."
	case errors.Is(err, walletflow.ErrInsufficientFunds):
		return "Insufficient balance."
	case errors.Is(err, walletflow.ErrNoRecipients):
		return "Select at least one recipient."
	case errors.Is(err, walletflow.ErrInvalidSPin):
		return "S-Pin must be exactly 4 digits."
	case errors.Is(err, walletflow.ErrInvalidUserID):
		return "Invalid receiver."
	default:
		return "Invalid request."
	}
}

func intQuery(ctx *gin.Context, name string, fallback int) int {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// zapFlowLogger adapts zap to the domain's flow logger callback.
type zapFlowLogger struct {
	logger *zap.Logger
}

func (adapter *zapFlowLogger) LogOperation(_ context.Context, entry walletflow.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("kind", entry.Kind.String()),
		zap.String("state", string(entry.State)),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("wallet flow", fields...)
		return
	}
	adapter.logger.Info("wallet flow", fields...)
}
