package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"procverify/pkg/requestcontext"
)

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 11, 18, 23, 15, 44, 0, time.UTC)
	var seen time.Time
	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Now(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, fixed.Equal(seen))
}

func TestMiddleware_UsesWallClock(t *testing.T) {
	before := time.Now()
	var seen time.Time
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Now(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, seen.Before(before))
	assert.False(t, seen.After(time.Now()))
}
