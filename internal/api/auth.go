package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const accessTokenHeader = "X-Access-Token"

var httpClient = &http.Client{Timeout: 10 * time.Second}

var errUnauthorized = errors.New("unauthorized")

type authResp struct {
	Identifier string `json:"identifier"`
}

// validateToken asks validateURL who token belongs to. errUnauthorized
// means the token was refused; any other error is the validator's fault.
func validateToken(ctx context.Context, validateURL, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Add("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("validator returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: validator returned %d", errUnauthorized, resp.StatusCode)
	}

	var response authResp
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode validator response: %w", err)
	}
	if response.Identifier == "" {
		return "", fmt.Errorf("%w: no identifier", errUnauthorized)
	}
	return response.Identifier, nil
}

// requireAuth only lets through requests whose access token validateURL
// accepts, and tags their log context with the caller's identifier.
func (a *api) requireAuth(validateURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(accessTokenHeader)
			if token == "" {
				a.log.Warn().Msg("Request missing auth header")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			identifier, err := validateToken(r.Context(), validateURL, token)
			if errors.Is(err, errUnauthorized) {
				a.log.Warn().Err(err).Msg("Access token refused")
				w.WriteHeader(http.StatusUnauthorized)
				return
			} else if err != nil {
				a.log.Err(err).Msg("Failed to validate access token")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("identifier", identifier)
			})

			next.ServeHTTP(w, r)
		})
	}
}
