package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TokenReviewManager asks the Kubernetes API server whether a bearer token is
// authenticated, using the TokenReview API.
type TokenReviewManager struct {
	apiServer    string
	serviceToken string
	client       *http.Client
}

// NewTokenReviewManager creates a manager. serviceToken authenticates this
// service to the API server; client should trust the cluster CA.
func NewTokenReviewManager(apiServer, serviceToken string, client *http.Client) *TokenReviewManager {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenReviewManager{
		apiServer:    strings.TrimRight(apiServer, "/"),
		serviceToken: serviceToken,
		client:       client,
	}
}

type tokenReview struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Spec       tokenReviewSpec   `json:"spec"`
	Status     tokenReviewStatus `json:"status,omitempty"`
}

type tokenReviewSpec struct {
	Token string `json:"token"`
}

type tokenReviewStatus struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

func (m *TokenReviewManager) Scheme() string {
	return "Bearer"
}

func (m *TokenReviewManager) Validate(ctx context.Context, authorization string) (bool, error) {
	token, ok := splitAuthorization(authorization, "Bearer")
	if !ok {
		return false, nil
	}

	body, err := json.Marshal(tokenReview{
		APIVersion: "authentication.k8s.io/v1",
		Kind:       "TokenReview",
		Spec:       tokenReviewSpec{Token: token},
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal token review: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.apiServer+"/apis/authentication.k8s.io/v1/tokenreviews", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build token review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.serviceToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("token review request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("token review returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var review tokenReview
	if err := json.NewDecoder(resp.Body).Decode(&review); err != nil {
		return false, fmt.Errorf("failed to decode token review: %w", err)
	}
	return review.Status.Authenticated, nil
}
