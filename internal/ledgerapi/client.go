package ledgerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

const (
	pathLogin                   = "/api/auth/login"
	pathProfile                 = "/api/user/profile"
	pathHistory                 = "/api/wallet/history"
	pathSend                    = "/api/wallet/send"
	pathTopUp                   = "/api/wallet/topup"
	pathGroupSend               = "/api/wallet/send-group"
	pathAdminReset              = "/api/wallet/admin-reset-balances"
	pathMembersByRole           = "/api/user/by-role"
	pathMembersByRoleDepartment = "/api/user/by-role-in-my-department"

	defaultRequestTimeout = 15 * time.Second
)

// ErrInvalidClientConfig marks a miswired client.
var ErrInvalidClientConfig = errors.New("invalid ledger client config")

// ServerError is a backend rejection whose message must be shown verbatim.
type ServerError struct {
	StatusCode int
	Message    string
}

// Error returns the formatted rejection.
func (serverError *ServerError) Error() string {
	return fmt.Sprintf("ledger rejected with status %d: %s", serverError.StatusCode, serverError.Message)
}

// ServerMessage returns the backend-provided reason.
func (serverError *ServerError) ServerMessage() string {
	return serverError.Message
}

// TokenSource yields the bearer token of the active session, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the festival Ledger API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient wires a client against the given base URL. The token source may
// be nil for login-only use.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidClientConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL:    trimmed,
		httpClient: httpClient,
		tokens:     tokens,
	}, nil
}

// Login exchanges credentials for a token and the viewer snapshot.
func (client *Client) Login(ctx context.Context, request LoginRequest) (LoginResult, error) {
	var payload loginPayload
	if err := client.do(ctx, http.MethodPost, pathLogin, nil, request, &payload); err != nil {
		return LoginResult{}, err
	}
	profile, err := payload.User.toProfile()
	if err != nil {
		return LoginResult{}, fmt.Errorf("decode login user: %w", err)
	}
	return LoginResult{Token: payload.Token, Profile: profile}, nil
}

// FetchProfile reloads the viewer snapshot, balance included.
func (client *Client) FetchProfile(ctx context.Context) (walletflow.Profile, error) {
	var payload userPayload
	if err := client.do(ctx, http.MethodGet, pathProfile, nil, nil, &payload); err != nil {
		return walletflow.Profile{}, err
	}
	profile, err := payload.toProfile()
	if err != nil {
		return walletflow.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

// FetchHistory pages the transaction history. Both the legacy bare-array
// response and the paginated envelope are accepted.
func (client *Client) FetchHistory(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	values := url.Values{}
	if query.Search != "" {
		values.Set("search", query.Search)
	}
	if query.Type != "" {
		values.Set("type", query.Type)
	}
	if query.From != "" {
		values.Set("from", query.From)
	}
	if query.To != "" {
		values.Set("to", query.To)
	}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	raw, err := client.doRaw(ctx, http.MethodGet, pathHistory, values, nil)
	if err != nil {
		return HistoryPage{}, err
	}
	page, err := decodeHistory(raw)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("decode history: %w", err)
	}
	return page, nil
}

// MembersByRole lists festival members holding a role across departments.
func (client *Client) MembersByRole(ctx context.Context, role string) ([]walletflow.Profile, error) {
	return client.fetchMembers(ctx, pathMembersByRole, role)
}

// MembersByRoleInMyDepartment lists members holding a role inside the
// viewer's own department.
func (client *Client) MembersByRoleInMyDepartment(ctx context.Context, role string) ([]walletflow.Profile, error) {
	return client.fetchMembers(ctx, pathMembersByRoleDepartment, role)
}

func (client *Client) fetchMembers(ctx context.Context, path string, role string) ([]walletflow.Profile, error) {
	values := url.Values{}
	if role != "" {
		values.Set("role", role)
	}
	var payloads []userPayload
	raw, err := client.doRaw(ctx, http.MethodGet, path, values, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	profiles := make([]walletflow.Profile, 0, len(payloads))
	for _, payload := range payloads {
		profile, err := payload.toProfile()
		if err != nil {
			return nil, fmt.Errorf("decode member: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// SubmitSend posts a single transfer.
func (client *Client) SubmitSend(ctx context.Context, receiver string, amount walletflow.AmountPaise, pin walletflow.SPin) error {
	body := map[string]any{
		"receiverId": receiver,
		"amount":     paiseToRupees(amount),
		"sPin":       pin.String(),
	}
	return client.do(ctx, http.MethodPost, pathSend, nil, body, nil)
}

// SubmitTopUp posts a self-credit.
func (client *Client) SubmitTopUp(ctx context.Context, amount walletflow.AmountPaise, pin walletflow.SPin) error {
	body := map[string]any{
		"amount": paiseToRupees(amount),
		"sPin":   pin.String(),
	}
	return client.do(ctx, http.MethodPost, pathTopUp, nil, body, nil)
}

// SubmitGroupSend posts a fan-out transfer.
func (client *Client) SubmitGroupSend(ctx context.Context, recipients []walletflow.Recipient, pin walletflow.SPin) error {
	wireRecipients := make([]map[string]any, 0, len(recipients))
	for _, recipient := range recipients {
		wireRecipients = append(wireRecipients, map[string]any{
			"receiverId": recipient.ReceiverID.String(),
			"amount":     paiseToRupees(recipient.Amount),
		})
	}
	body := map[string]any{
		"recipients": wireRecipients,
		"sPin":       pin.String(),
	}
	return client.do(ctx, http.MethodPost, pathGroupSend, nil, body, nil)
}

// SubmitAdminReset posts a privileged balance reset.
func (client *Client) SubmitAdminReset(ctx context.Context, target walletflow.ResetTarget, reason string, pin walletflow.SPin) error {
	body := map[string]any{
		"reason": reason,
		"sPin":   pin.String(),
	}
	if target.Scope() == walletflow.ResetExplicitList {
		ids := make([]string, 0, len(target.UserIDs()))
		for _, id := range target.UserIDs() {
			ids = append(ids, id.String())
		}
		body["userIds"] = ids
	}
	return client.do(ctx, http.MethodPost, pathAdminReset, nil, body, nil)
}

func (client *Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	raw, err := client.doRaw(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (client *Client) doRaw(ctx context.Context, method string, path string, query url.Values, body any) ([]byte, error) {
	target := client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if client.tokens != nil {
		if token, ok := client.tokens.Token(); ok {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, decodeServerError(response.StatusCode, raw)
	}
	return raw, nil
}

func decodeServerError(statusCode int, raw []byte) error {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && strings.TrimSpace(envelope.Message) != "" {
		return &ServerError{StatusCode: statusCode, Message: envelope.Message}
	}
	return fmt.Errorf("ledger answered with status %d", statusCode)
}
