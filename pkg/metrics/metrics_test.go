package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "movierank")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("web"),
				WithStoreBuckets([]float64{1, 5, 10}),
				WithCatalogBuckets([]float64{100, 1000}),
				WithMetricsEnabled(false),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "web")
				So(manager.storeBuckets, ShouldResemble, []float64{1, 5, 10})
				So(manager.catalogBuckets, ShouldResemble, []float64{100, 1000})
				So(manager.requestBuckets, ShouldResemble, defaultRequestBuckets)
				So(manager.enabled, ShouldBeFalse)
			})
		})

		Convey("When passing empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithRequestBuckets(nil), WithStoreBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "movierank")
				So(manager.requestBuckets, ShouldResemble, defaultRequestBuckets)
				So(manager.storeBuckets, ShouldResemble, defaultStoreBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When updating collection gauges", func() {
			UpdateMoviesTotal(3)
			UpdateMoviesByOwner(map[string]int{"Amy": 2, "Chris": 1})

			Convey("Then the gauges should reflect the values", func() {
				So(testutil.ToFloat64(globalManager.moviesTotal), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.moviesByOwner.WithLabelValues("Amy")), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.moviesByOwner.WithLabelValues("Chris")), ShouldEqual, 1)
			})
		})

		Convey("When counting duplicate titles", func() {
			before := testutil.ToFloat64(globalManager.duplicateTitles)
			RecordDuplicateTitle()
			RecordDuplicateTitle()

			Convey("Then the counter should grow by two", func() {
				So(testutil.ToFloat64(globalManager.duplicateTitles)-before, ShouldEqual, 2)
			})
		})

		Convey("When recording store operations", func() {
			before := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("get"))
			RecordStoreOperation("get", 1.5, nil)
			RecordStoreOperation("get", 2.5, errors.New("boom"))

			Convey("Then only failures should be counted as errors", func() {
				So(testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("get"))-before, ShouldEqual, 1)
			})
		})

		Convey("When recording catalog and HTTP metrics", func() {
			So(func() {
				RecordCatalogRequest("search", "success", 12)
				RecordCatalogRateLimitWait(0.5)
				UpdateCircuitBreakerState("tmdb", 2)
				RecordCircuitBreakerTransition("tmdb", "closed", "open")
				RecordHTTPRequest("home", "GET", "200")
				RecordHTTPRequestDuration("home", "GET", "200", 4)
				RecordErrorByEndpoint("edit", "POST", "client_error")
				RecordErrorByType("client_error", "medium")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)

			Convey("Then the breaker gauge should be exported", func() {
				So(testutil.ToFloat64(globalManager.breakerState.WithLabelValues("tmdb")), ShouldEqual, 2)
			})
		})

		Convey("When gathering from the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then movierank metrics should be present", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
