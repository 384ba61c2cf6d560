package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noSleep(_ time.Duration) {}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), srv.URL, Credentials{},
		WithHTTPClient(srv.Client()), WithSleep(noSleep))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), "  ", Credentials{})
	require.Error(t, err)

	// Without an injected http client a token URL is mandatory.
	_, err = NewClient(context.Background(), "https://platform.example", Credentials{})
	require.Error(t, err)
}

func TestCandidates_PagedListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/candidates", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("offset"))
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(CandidatePage{
			Items:      []Candidate{{CandidateID: 1, Email: "a@b.c", FirstName: "Jordan", LastName: "Smith"}},
			TotalCount: 250,
		})
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv).Candidates(context.Background(), 100, 50)
	require.NoError(t, err)
	require.Equal(t, int64(250), page.TotalCount)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Jordan Smith", page.Items[0].FullName())
}

func TestCandidateDates_FlattensCreatedAt(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/candidates/7/applications", r.URL.Path)
		_ = json.NewEncoder(w).Encode(DatedPage{Items: []DatedItem{
			{CreatedAt: &created},
			{CreatedAt: nil},
		}})
	}))
	defer srv.Close()

	dates, err := newTestClient(t, srv).CandidateDates(context.Background(), 7, "applications")
	require.NoError(t, err)
	require.Equal(t, []time.Time{created}, dates)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flapping", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(Company{CompanyID: 10, Name: "Acme"})
	}))
	defer srv.Close()

	company, err := newTestClient(t, srv).Company(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, "Acme", company.Name)
	require.Equal(t, 3, attempts)
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Company(context.Background(), 10)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, 3, attempts)
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "no such company", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Company(context.Background(), 10)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, 1, attempts)
}

func TestUpdateApplicationStatus_PutsStatusID(t *testing.T) {
	var gotBody map[string]int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/applications/88", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).UpdateApplicationStatus(context.Background(), 88, 20)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"statusId": 20}, gotBody)
}

func TestUpdateApplicationStatus_NoRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).UpdateApplicationStatus(context.Background(), 88, 20)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

type mockSecrets struct {
	values map[string]string
	err    error
}

func (m *mockSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	value, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("no parameter %s", name)
	}
	return value, nil
}

func TestLoadCredentials(t *testing.T) {
	secrets := &mockSecrets{values: map[string]string{
		"org/42/platform/client_id":     "client-42",
		"org/42/platform/client_secret": "secret-42",
		"org/42/platform/refresh_token": "refresh-42",
	}}

	creds, err := LoadCredentials(context.Background(), secrets, 42, "https://auth.example/token")
	require.NoError(t, err)
	require.Equal(t, Credentials{
		ClientID:     "client-42",
		ClientSecret: "secret-42",
		RefreshToken: "refresh-42",
		TokenURL:     "https://auth.example/token",
	}, creds)
}

func TestLoadCredentials_MissingParameter(t *testing.T) {
	_, err := LoadCredentials(context.Background(), &mockSecrets{err: errors.New("ssm unavailable")}, 42, "https://auth.example/token")
	require.Error(t, err)
}
