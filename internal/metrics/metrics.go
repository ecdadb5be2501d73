// Package metrics define los collectors Prometheus del servicio.
//
// Los Record* son no-ops hasta que Register corre, así los paquetes de dominio
// pueden instrumentar sin depender de que /metrics esté habilitado (tests).
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Social login flow
	callbackTotal    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	statesTotal      *prometheus.CounterVec
	statesSwept      prometheus.Counter
	rateLimitRejects *prometheus.CounterVec
)

// Config agrupa dependencias opcionales para /metrics.
type Config struct {
	Registry prometheus.Registerer
	Pool     func() *pgxpool.Pool // nil sin Postgres
}

// Register inicializa los collectors y devuelve el handler para /metrics.
func Register(cfg Config) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		callbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgate_callback_total",
			Help: "Etapas del callback OAuth por provider y resultado",
		}, []string{"provider", "stage", "result"}) // result: ok|error

		providerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialgate_provider_request_duration_seconds",
			Help:    "Latencia de llamadas salientes al provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider", "op", "result"}) // op: exchange|userinfo

		statesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgate_states_total",
			Help: "Operaciones sobre estados CSRF",
		}, []string{"op", "result"}) // op: generate|consume

		statesSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialgate_states_swept_total",
			Help: "Estados expirados eliminados por el sweeper",
		})

		rateLimitRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgate_rate_limit_rejects_total",
			Help: "Requests rechazadas por rate limit",
		}, []string{"path"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			callbackTotal, providerDuration, statesTotal, statesSwept, rateLimitRejects,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.Pool != nil {
		if err := registerCollector(registry, newDBPoolCollector(cfg.Pool)); err != nil {
			return nil, err
		}
	}

	// Usamos el gatherer global por compatibilidad, ya que las métricas se registran allí.
	return promhttp.Handler(), nil
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ─── HTTP ───

// HTTPStart marca un request en vuelo; llamar al func devuelto al terminar.
func HTTPStart(method, path string) func(status int) {
	if httpRequestsTotal == nil {
		return func(int) {}
	}
	method = strings.ToUpper(method)
	httpInflight.WithLabelValues(method, path).Inc()
	start := time.Now()
	return func(status int) {
		httpInflight.WithLabelValues(method, path).Dec()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	}
}

// ─── Social ───

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCallbackStage cuenta una etapa del callback.
func RecordCallbackStage(provider, stage string, err error) {
	if callbackTotal != nil {
		callbackTotal.WithLabelValues(provider, stage, result(err)).Inc()
	}
}

// ObserveProvider registra la latencia de una llamada al provider.
func ObserveProvider(provider, op string, d time.Duration, err error) {
	if providerDuration != nil {
		providerDuration.WithLabelValues(provider, op, result(err)).Observe(d.Seconds())
	}
}

// RecordState cuenta generate/consume de estados.
func RecordState(op string, err error) {
	if statesTotal != nil {
		statesTotal.WithLabelValues(op, result(err)).Inc()
	}
}

// RecordStatesSwept suma los estados borrados por el sweeper.
func RecordStatesSwept(n int) {
	if statesSwept != nil && n > 0 {
		statesSwept.Add(float64(n))
	}
}

// RecordRateLimitReject registra un rechazo del rate limiter.
func RecordRateLimitReject(path string) {
	if rateLimitRejects != nil {
		rateLimitRejects.WithLabelValues(path).Inc()
	}
}

// ─── DB pool ───

type dbPoolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newDBPoolCollector(pool func() *pgxpool.Pool) *dbPoolCollector {
	return &dbPoolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}

// ─── Path labels ───

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// NormalizePath colapsa segmentos dinámicos para acotar la cardinalidad del label.
// Se usa cuando el router no resolvió un patrón (404).
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if uuidSegmentRE.MatchString(seg) || hexSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}
