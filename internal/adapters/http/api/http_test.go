package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/movierank/internal/adapters/http/api"
	"github.com/okian/movierank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockStatsProvider struct {
	stats map[string]interface{}
	err   error
}

func (m *mockStatsProvider) GetStats(_ context.Context) (map[string]interface{}, error) {
	return m.stats, m.err
}

func newTestRouter(provider api.StatsProvider, cfg api.RouterConfig) http.Handler {
	r := api.NewRouter(cfg)
	api.NewServer(provider).Register(context.Background(), r)
	return r
}

func TestServer_Register(t *testing.T) {
	Convey("Given an API server on a chi router", t, func() {
		provider := &mockStatsProvider{stats: map[string]interface{}{"started": true, "totalMovies": 3}}
		h := newTestRouter(provider, api.RouterConfig{RateLimitDisabled: true})

		Convey("When requesting /healthz", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then Prometheus metrics are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "movierank_")
			})
		})

		Convey("When requesting /stats", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the stats are returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")

				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["started"], ShouldEqual, true)
				So(body["totalMovies"], ShouldEqual, 3.0)
			})

			Convey("And a request id header is set", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When POSTing to /stats", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stats", nil))

			Convey("Then the method is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})

	Convey("Given a stats provider that fails", t, func() {
		h := newTestRouter(&mockStatsProvider{err: errors.New("db locked")}, api.RouterConfig{RateLimitDisabled: true})

		Convey("When requesting /stats", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then a JSON error is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "stats_unavailable")
			})
		})
	})
}

func TestServer_CORS(t *testing.T) {
	Convey("Given an API server allowing one origin", t, func() {
		r := api.NewRouter(api.RouterConfig{RateLimitDisabled: true})
		api.NewServer(&mockStatsProvider{stats: map[string]interface{}{}},
			api.WithCORSOrigins([]string{"https://dash.example"}),
		).Register(context.Background(), r)

		Convey("When that origin reads /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("Origin", "https://dash.example")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			Convey("Then the origin is allowed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://dash.example")
			})
		})

		Convey("When another origin reads /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			Convey("Then no allow header is sent", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})

	Convey("Given an API server without CORS origins", t, func() {
		h := newTestRouter(&mockStatsProvider{stats: map[string]interface{}{}}, api.RouterConfig{RateLimitDisabled: true})
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Origin", "https://dash.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		Convey("Then no CORS headers are sent", func() {
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})
	})
}

func TestRequestID(t *testing.T) {
	Convey("Given a handler behind the RequestID middleware", t, func() {
		var seen string
		h := api.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.RequestIDFromContext(r.Context())
		}))

		Convey("When the request carries no id", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then a new id is generated and exposed", func() {
				So(seen, ShouldNotBeEmpty)
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, seen)
			})
		})

		Convey("When the request carries an id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it is reused", func() {
				So(seen, ShouldEqual, "abc-123")
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			})
		})
	})
}

func TestRateLimitByIP(t *testing.T) {
	Convey("Given a router limited to two requests per minute", t, func() {
		h := newTestRouter(&mockStatsProvider{stats: map[string]interface{}{}}, api.RouterConfig{
			RateLimitRequests: 2,
			RateLimitWindow:   time.Minute,
		})

		Convey("When a client sends three requests", func() {
			codes := make([]int, 0, 3)
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodGet, "/stats", nil)
				req.RemoteAddr = "10.0.0.1:4000"
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				codes = append(codes, w.Code)
			}

			Convey("Then the third is rejected", func() {
				So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})
			})
		})
	})
}

func TestRecoverer(t *testing.T) {
	Convey("Given a route that panics", t, func() {
		r := api.NewRouter(api.RouterConfig{RateLimitDisabled: true})
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

		Convey("When it is requested", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

			Convey("Then a 500 is returned instead of crashing", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}
