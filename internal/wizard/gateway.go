package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// Gateway is the controller's view of the onboarding backend.
type Gateway interface {
	// FetchExisting returns onboarding.ErrNotFound when the user has no record.
	FetchExisting(ctx context.Context) (*onboarding.Snapshot, error)
	// SaveStep upserts one step's payload without requiring the others.
	SaveStep(ctx context.Context, step int, payload any) error
	Complete(ctx context.Context, payload onboarding.CompletePayload) error
}

// NetworkError is any failure reaching the backend or reading its reply.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPGateway talks to the onboarding record API.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for baseURL (for example
// http://localhost:8080/api/v1) authenticating with a bearer token.
func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data   *onboarding.Snapshot `json:"data"`
	Error  string               `json:"error"`
	Errors []onboarding.Issue   `json:"errors"`
}

func (g *HTTPGateway) FetchExisting(ctx context.Context) (*onboarding.Snapshot, error) {
	const op = "fetch existing onboarding"
	body, status, err := g.do(ctx, op, http.MethodGet, "/onboarding/existing", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, onboarding.ErrNotFound
	}
	env, err := decodeEnvelope(op, status, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &NetworkError{Op: op, StatusCode: status, Err: errors.New(env.Error)}
	}
	if env.Data == nil {
		return nil, &NetworkError{Op: op, StatusCode: status, Err: errors.New("response has no data")}
	}
	return env.Data, nil
}

func (g *HTTPGateway) SaveStep(ctx context.Context, step int, payload any) error {
	req, err := stepRequest(step, payload)
	if err != nil {
		return err
	}
	return g.post(ctx, fmt.Sprintf("save step %d", step), step, req)
}

func (g *HTTPGateway) Complete(ctx context.Context, payload onboarding.CompletePayload) error {
	return g.post(ctx, "complete onboarding", 0, payload.Request())
}

func (g *HTTPGateway) post(ctx context.Context, op string, step int, req onboarding.SaveRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	body, status, err := g.do(ctx, op, http.MethodPost, "/onboarding", raw)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	env, err := decodeEnvelope(op, status, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnprocessableEntity {
		issues := env.Errors
		if len(issues) == 0 {
			issues = []onboarding.Issue{{Message: env.Error}}
		}
		return &onboarding.SchemaValidationError{Step: step, Issues: issues}
	}
	return &NetworkError{Op: op, StatusCode: status, Err: errors.New(env.Error)}
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, 0, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return body, resp.StatusCode, nil
}

func decodeEnvelope(op string, status int, body []byte) (*envelope, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 {
		env.Error = http.StatusText(status)
		return &env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Error == "" {
		env.Error = http.StatusText(status)
	}
	return &env, nil
}

// stepRequest builds the incremental save body for one step.
func stepRequest(step int, payload any) (onboarding.SaveRequest, error) {
	var req onboarding.SaveRequest
	var ok bool
	switch step {
	case onboarding.StepBusiness:
		req.BusinessInformation, ok = asPointer[onboarding.BusinessInformation](payload)
	case onboarding.StepGoals:
		req.AssistantGoals, ok = asPointer[onboarding.AssistantGoals](payload)
	case onboarding.StepInteraction:
		req.AssistantInformation, ok = asPointer[onboarding.AssistantInformation](payload)
	default:
		return req, fmt.Errorf("step %d has no payload to save", step)
	}
	if !ok {
		return req, fmt.Errorf("save step %d: %w", step, onboarding.ErrPayloadMismatch)
	}
	return req, nil
}

func asPointer[T any](payload any) (*T, bool) {
	switch p := payload.(type) {
	case T:
		return &p, true
	case *T:
		return p, p != nil
	}
	return nil, false
}
