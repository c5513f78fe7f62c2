package geoip

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/splickets/internal/cache"
	"github.com/magabrotheeeer/splickets/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRedisCache(t *testing.T) *cache.Cache {
	mr := miniredis.RunT(t)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	return c
}

func TestClient_Country(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/41.0.0.1/json/":
			_, _ = w.Write([]byte(`{"ip":"41.0.0.1","country_code":"za"}`))
		case "/8.8.8.8/json/":
			_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.GeoIP{GeoAPIURL: srv.URL, GeoTimeout: time.Second, GeoCacheTTL: time.Hour},
		newRedisCache(t), newNoopLogger())
	ctx := context.Background()

	country, err := client.Country(ctx, "41.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ZA", country)

	country, err = client.Country(ctx, "41.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ZA", country)
	assert.Equal(t, int32(1), calls.Load(), "second lookup must come from cache")

	_, err = client.Country(ctx, "8.8.8.8")
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = client.Country(ctx, "1.1.1.1")
	assert.Error(t, err)
}

func TestClient_Country_SkipsLocalAddresses(t *testing.T) {
	client := NewClient(config.GeoIP{GeoAPIURL: "http://127.0.0.1:1"}, nil, newNoopLogger())
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "not-an-ip", ""} {
		_, err := client.Country(context.Background(), ip)
		assert.ErrorIs(t, err, ErrUnknownLocation, ip)
	}
}
