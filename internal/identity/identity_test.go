package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medquiz-service/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("s3cret", "medquiz")
	token, err := v.Issue(domain.User{ID: "u1", Name: "Asha"}, time.Hour)
	require.NoError(t, err)

	u, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "u1", Name: "Asha"}, u)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("s3cret", "medquiz")

	expired, err := v.Issue(domain.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewVerifier("other", "medquiz").Issue(domain.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewVerifier("s3cret", "elsewhere").Issue(domain.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := v.Issue(domain.User{Name: "nobody"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyDefaultsNameToSubject(t *testing.T) {
	v := NewVerifier("s3cret", "")
	token, err := v.Issue(domain.User{ID: "u7"}, time.Hour)
	require.NoError(t, err)

	u, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u7", u.Name)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("s3cret", "medquiz")
	token, err := v.Issue(domain.User{ID: "u1", Name: "Asha"}, time.Hour)
	require.NoError(t, err)

	var seen domain.User
	h := Middleware(v, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		want   domain.User
	}{
		{"anonymous", func(*http.Request) {}, http.StatusNoContent, Anonymous()},
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent, domain.User{ID: "u1", Name: "Asha"}},
		{"query", func(r *http.Request) { r.URL.RawQuery = "access_token=" + token }, http.StatusNoContent, domain.User{ID: "u1", Name: "Asha"}},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") }, http.StatusUnauthorized, domain.User{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = domain.User{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestDisabledVerifierServesAnonymous(t *testing.T) {
	v := NewVerifier("", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")

	u, err := v.Authenticate(req)
	require.NoError(t, err)
	assert.True(t, u.Anonymous)
}
