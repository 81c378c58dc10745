package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantID   string
		wantAuth bool
		wantErr  bool
	}{
		{name: "accepted", status: http.StatusOK, body: `{"identifier":"@user:example.com"}`, wantID: "@user:example.com"},
		{name: "refused", status: http.StatusForbidden, wantAuth: true},
		{name: "no identifier", status: http.StatusOK, body: `{}`, wantAuth: true},
		{name: "validator down", status: http.StatusBadGateway, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "token" {
					t.Errorf("authorization header: got %q", r.Header.Get("Authorization"))
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			id, err := validateToken(context.Background(), srv.URL, "token")
			switch {
			case tt.wantAuth:
				if !errors.Is(err, errUnauthorized) {
					t.Fatalf("got %v, want errUnauthorized", err)
				}
			case tt.wantErr:
				if err == nil || errors.Is(err, errUnauthorized) {
					t.Fatalf("got %v, want a validator error", err)
				}
			default:
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				if id != tt.wantID {
					t.Fatalf("identifier: got %q, want %q", id, tt.wantID)
				}
			}
		})
	}
}
