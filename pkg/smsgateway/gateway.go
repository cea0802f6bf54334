package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Gateway represents an outbound text message channel
type Gateway interface {
	SendSMS(ctx context.Context, to, message string) (string, error)
}

// Provider names accepted by New
const (
	ProviderTwilio   = "twilio"
	ProviderWhatsApp = "whatsapp"
	ProviderHTTP     = "http"
	ProviderMock     = "mock"
)

// ErrNotConfigured is returned by New when no provider is selected
var ErrNotConfigured = errors.New("sms gateway not configured")

// Options holds the credentials of every provider; only the selected one is read
type Options struct {
	Provider   string
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

// New builds the gateway named by opts.Provider
func New(opts Options, logger *zap.Logger) (Gateway, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderTwilio:
		return NewTwilioGateway(opts.AccountSID, opts.AuthToken, opts.FromNumber), nil
	case ProviderWhatsApp:
		return NewWhatsAppGateway(opts.AccountSID, opts.AuthToken, opts.FromNumber), nil
	case ProviderHTTP:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("http gateway requires a base URL")
		}
		return NewHTTPGateway(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	case ProviderMock:
		return NewMockGateway("mock", logger), nil
	case "":
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unknown sms provider %q", opts.Provider)
	}
}

// TwilioGateway sends through the Twilio Messages API
type TwilioGateway struct {
	client     *twilio.RestClient
	fromNumber string
	prefix     string
}

// NewTwilioGateway creates a gateway sending plain SMS
func NewTwilioGateway(accountSID, authToken, fromNumber string) *TwilioGateway {
	return &TwilioGateway{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

// NewWhatsAppGateway creates a gateway sending WhatsApp messages through Twilio
func NewWhatsAppGateway(accountSID, authToken, fromNumber string) *TwilioGateway {
	g := NewTwilioGateway(accountSID, authToken, fromNumber)
	g.prefix = "whatsapp:"
	return g
}

// SendSMS sends message to the E.164 number to
func (g *TwilioGateway) SendSMS(ctx context.Context, to, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(g.prefix + to)
	params.SetFrom(g.prefix + g.fromNumber)
	params.SetBody(message)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// HTTPGateway posts messages as JSON to a provider endpoint
type HTTPGateway struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates a new HTTPGateway
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendSMS sends an SMS using the HTTP gateway
func (g *HTTPGateway) SendSMS(ctx context.Context, to, message string) (string, error) {
	jsonBody, err := json.Marshal(map[string]string{
		"phoneNumber": to,
		"message":     message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return response.MessageID, nil
}

// SentMessage is a message captured by MockGateway
type SentMessage struct {
	ID      string
	To      string
	Message string
}

// MockGateway logs messages instead of sending them and keeps them for inspection
type MockGateway struct {
	Name   string
	Err    error
	logger *zap.Logger

	mu   sync.Mutex
	sent []SentMessage
}

// NewMockGateway creates a new Mock SMS gateway
func NewMockGateway(name string, logger *zap.Logger) *MockGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockGateway{Name: name, logger: logger}
}

// SendSMS records the message, or fails with Err when set
func (g *MockGateway) SendSMS(_ context.Context, to, message string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	msgID := fmt.Sprintf("%s-MOCK-MSG-%d", g.Name, len(g.sent)+1)
	g.sent = append(g.sent, SentMessage{ID: msgID, To: to, Message: message})
	g.logger.Info("mock sms sent", zap.String("gateway", g.Name), zap.String("to", to), zap.String("message", message), zap.String("message_id", msgID))
	return msgID, nil
}

// Sent returns a copy of the captured messages
func (g *MockGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

// Last returns the most recent message, if any
func (g *MockGateway) Last() (SentMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return SentMessage{}, false
	}
	return g.sent[len(g.sent)-1], true
}
