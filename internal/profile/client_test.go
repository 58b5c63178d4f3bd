// file: internal/profile/client_test.go
package profile

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMockServer starts a profile endpoint that records the last request.
func setupMockServer(t *testing.T, status int, body string, lastReq *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastReq != nil {
			data, _ := io.ReadAll(r.Body)
			*lastReq = capturedRequest{
				Method:        r.Method,
				Path:          r.URL.Path,
				ContentType:   r.Header.Get("Content-Type"),
				Authorization: r.Header.Get("Authorization"),
				Body:          data,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type capturedRequest struct {
	Method        string
	Path          string
	ContentType   string
	Authorization string
	Body          []byte
}

func newTestClient(baseURL, token string, timeout time.Duration) *Client {
	return NewClient(Options{
		BaseURL:              baseURL,
		Token:                token,
		Timeout:              timeout,
		ShowInactiveProfiles: true,
	}, logging.GetNoopLogger())
}

func TestFetchProfile_Success_PassesBodyThrough(t *testing.T) {
	var got capturedRequest
	const upstream = `{"profiles":[{"profileId":42}]}`
	srv := setupMockServer(t, http.StatusOK, upstream, &got)

	client := newTestClient(srv.URL, "T", time.Second)
	result, err := client.FetchProfile(context.Background(), 42)
	require.NoError(t, err)
	assert.JSONEq(t, upstream, string(result))
	assert.Equal(t, upstream, string(result), "Body must be returned byte for byte.")

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, FindProfilesPath, got.Path)
	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, "Bearer T", got.Authorization)
	assert.JSONEq(t, `{"selectors":[{"profileId":42}],"showInactiveProfiles":true}`, string(got.Body))
}

func TestFetchProfile_BaseURLTrailingSlash(t *testing.T) {
	var got capturedRequest
	srv := setupMockServer(t, http.StatusOK, `{}`, &got)

	client := newTestClient(srv.URL+"/", "T", time.Second)
	_, err := client.FetchProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, FindProfilesPath, got.Path)
}

// roundTripperFunc lets a test see the request exactly as the client sends it.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// The header is checked on the client side: HTTP servers trim the trailing space.
func TestFetchProfile_EmptyTokenStillSendsHeader(t *testing.T) {
	var sent *http.Request
	client := NewClient(Options{
		BaseURL: "http://profiles.test",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			sent = r
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{}`)),
				Request:    r,
			}, nil
		})},
	}, logging.GetNoopLogger())

	_, err := client.FetchProfile(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "Bearer ", sent.Header.Get("Authorization"))
	assert.Equal(t, "http://profiles.test"+FindProfilesPath, sent.URL.String())
}

func TestFetchProfile_NonSuccessStatus(t *testing.T) {
	srv := setupMockServer(t, http.StatusInternalServerError, `{"message":"boom"}`, nil)

	_, err := newTestClient(srv.URL, "T", time.Second).FetchProfile(context.Background(), 7)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr), "Expected *HTTPStatusError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), FindProfilesPath)
	assert.Equal(t, `{"message":"boom"}`, string(statusErr.Body))
}

func TestFetchProfile_InvalidJSONBody(t *testing.T) {
	srv := setupMockServer(t, http.StatusOK, `<html>not json</html>`, nil)

	_, err := newTestClient(srv.URL, "T", time.Second).FetchProfile(context.Background(), 7)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr), "Expected *DecodeError, got %T", err)
}

func TestFetchProfile_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	_, err := newTestClient(srv.URL, "T", 50*time.Millisecond).FetchProfile(context.Background(), 7)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "Expected *TransportError, got %T", err)
	assert.True(t, transportErr.Timeout())
}

func TestFetchProfile_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "T", time.Second).FetchProfile(context.Background(), 7)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "Expected *TransportError, got %T", err)
	assert.False(t, transportErr.Timeout())
}

func TestGetProfile_ConvertsErrorsToPayload(t *testing.T) {
	stalled := func(t *testing.T) string {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})
		return srv.URL
	}

	testCases := []struct {
		name    string
		baseURL func(t *testing.T) string
		want    []string
	}{
		{
			name:    "NotFound",
			baseURL: func(t *testing.T) string { return setupMockServer(t, http.StatusNotFound, `nope`, nil).URL },
			want:    []string{"404", FindProfilesPath},
		},
		{
			name:    "ServerError",
			baseURL: func(t *testing.T) string { return setupMockServer(t, http.StatusInternalServerError, `boom`, nil).URL },
			want:    []string{"500", FindProfilesPath},
		},
		{
			name:    "Timeout",
			baseURL: stalled,
			want:    []string{"timed out", FindProfilesPath},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := newTestClient(tc.baseURL(t), "T", 100*time.Millisecond).GetProfile(context.Background(), 42)

			var decoded map[string]string
			require.NoError(t, json.Unmarshal(payload, &decoded), "Payload must be valid JSON: %s", payload)
			require.Len(t, decoded, 1, "Error payload has exactly one key.")
			for _, want := range tc.want {
				assert.Contains(t, decoded["error"], want)
			}
		})
	}
}

func TestGetProfile_SuccessUnchanged(t *testing.T) {
	const upstream = `{"profiles":[]}`
	srv := setupMockServer(t, http.StatusOK, upstream, nil)

	payload := newTestClient(srv.URL, "T", time.Second).GetProfile(context.Background(), 1)
	assert.Equal(t, upstream, string(payload))
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.invalid"}, nil)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, "http://example.invalid"+FindProfilesPath, c.Endpoint())
}
