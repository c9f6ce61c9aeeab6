// Command objload drives an S3-compatible object-storage workload: a
// mix of writes, reads, deletes, overwrites and multipart uploads,
// signed with AWS Signature V2 or V4 and paced by a configurable
// scheduler, with a persistent object-name population surviving
// across runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tigrawap/objload/internal/auth"
	"github.com/tigrawap/objload/internal/client/fasthttpclient"
	"github.com/tigrawap/objload/internal/driver"
	"github.com/tigrawap/objload/internal/eventbus"
	"github.com/tigrawap/objload/internal/httpx"
	"github.com/tigrawap/objload/internal/logging"
	"github.com/tigrawap/objload/internal/multipart"
	"github.com/tigrawap/objload/internal/objectmanager"
	"github.com/tigrawap/objload/internal/ogerrors"
	"github.com/tigrawap/objload/internal/request"
	"github.com/tigrawap/objload/internal/stats"
	"github.com/tigrawap/objload/internal/supplier"
)

const (
	notSet       = -1
	notSetString = "_OBJLOAD_NOT_SET_"
	formatHuman  = "human"
	formatJSON   = "json"
)

var config struct {
	endpoint       string
	scheme         string
	bucket         string
	apiKey         string
	secretKey      string
	region         string
	signVersion    int
	virtualHost    bool

	concurrency int
	rate        float64
	distribution string
	duration     time.Duration
	maxRequests  int64
	maxAborts    int64
	graceful     bool

	writeWeight     float64
	readWeight      float64
	deleteWeight    float64
	overwriteWeight float64
	multipartWeight float64

	bodySizeInput    string
	minBodySizeInput string
	maxBodySizeInput string
	randomData       bool

	objectStoreDir    string
	objectStorePrefix string

	multipartEnabled       bool
	multipartPartSizeInput string
	multipartMaxParts      int
	multipartTargetSessions int

	outputFormat string
	logLevel     string
	metricsAddr  string
	seed         int64
}

func configure() {
	flag.StringVar(&config.endpoint, "endpoint", "", "S3 endpoint, host[:port]")
	flag.StringVar(&config.scheme, "scheme", "http", "URI scheme (http/https)")
	flag.StringVar(&config.bucket, "bucket", "", "Bucket (container) name")
	flag.StringVar(&config.apiKey, "access-key", "", "S3 access key")
	flag.StringVar(&config.secretKey, "secret-key", "", "S3 secret key")
	flag.StringVar(&config.region, "region", notSetString, "S3 region, required for V4 signature")
	flag.IntVar(&config.signVersion, "sign-ver", 4, "S3 signature version, 2 or 4")
	flag.BoolVar(&config.virtualHost, "virtual-host", false, "Use virtual-hosted-style URLs (bucket.endpoint) instead of path-style")

	flag.IntVar(&config.concurrency, "concurrency", 16, "Maximum in-flight requests")
	flag.Float64Var(&config.rate, "rate", 0, "Target operations per second across the whole mix, 0 for concurrency-bound only")
	flag.StringVar(&config.distribution, "distribution", "concurrency", "Admission pacing: concurrency/constant/poisson")
	flag.DurationVar(&config.duration, "duration", 0, "Maximum run duration, 0 for unlimited")
	flag.Int64Var(&config.maxRequests, "max-requests", 0, "Maximum total operations before stopping, 0 for unlimited")
	flag.Int64Var(&config.maxAborts, "max-aborts", 0, "Maximum transport failures before stopping, 0 for unlimited")
	flag.BoolVar(&config.graceful, "graceful", true, "Wait for in-flight requests to finish when a stop condition fires")

	flag.Float64Var(&config.writeWeight, "write-weight", 1, "Relative weight of WRITE operations")
	flag.Float64Var(&config.readWeight, "read-weight", 1, "Relative weight of READ operations")
	flag.Float64Var(&config.deleteWeight, "delete-weight", 1, "Relative weight of DELETE operations")
	flag.Float64Var(&config.overwriteWeight, "overwrite-weight", 0, "Relative weight of OVERWRITE operations")
	flag.Float64Var(&config.multipartWeight, "multipart-weight", 0, "Relative weight of multipart upload sessions")

	flag.StringVar(&config.bodySizeInput, "body-size", "160KiB", "Object body size for writes")
	flag.StringVar(&config.minBodySizeInput, "min-body-size", notSetString, "Minimum body size, enables a [min,max] range")
	flag.StringVar(&config.maxBodySizeInput, "max-body-size", notSetString, "Maximum body size, enables a [min,max] range")
	flag.BoolVar(&config.randomData, "random-data", false, "Fill write bodies with pseudo-random bytes instead of zeroes")

	flag.StringVar(&config.objectStoreDir, "object-store-dir", "./objload-state", "Directory holding the persistent object-name population")
	flag.StringVar(&config.objectStorePrefix, "object-store-prefix", "objects", "File name prefix inside object-store-dir")

	flag.BoolVar(&config.multipartEnabled, "multipart", false, "Enable multipart upload sessions (requires multipart-weight > 0)")
	flag.StringVar(&config.multipartPartSizeInput, "multipart-part-size", "8MiB", "Multipart part size")
	flag.IntVar(&config.multipartMaxParts, "multipart-max-parts", 4, "Maximum in-flight PART requests per multipart session")
	flag.IntVar(&config.multipartTargetSessions, "multipart-target-sessions", 1, "Target number of concurrently open multipart sessions")

	flag.StringVar(&config.outputFormat, "output", formatHuman, "Output format: human or json")
	flag.StringVar(&config.logLevel, "log-level", "info", "Log level: debug/info/warn/error")
	flag.StringVar(&config.metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on, empty disables it")
	flag.Int64Var(&config.seed, "seed", notSet, "Seed for randomized choices, -1 for a fresh seed")

	flag.Parse()
}

func fatalConfig(msg string) {
	fmt.Fprintln(os.Stderr, "configuration error:", msg)
	os.Exit(1)
}

func main() {
	configure()

	if lvl, err := zerolog.ParseLevel(config.logLevel); err == nil && lvl != zerolog.NoLevel {
		logging.SetLevel(lvl)
	}

	if config.bucket == "" {
		fatalConfig("-bucket is required")
	}
	if config.endpoint == "" {
		fatalConfig("-endpoint is required")
	}
	switch config.signVersion {
	case 2, 4:
	default:
		fatalConfig("-sign-ver must be 2 or 4")
	}
	if config.signVersion == 4 && config.region == notSetString {
		fatalConfig("-region is required for V4 signature")
	}

	host, port := splitEndpoint(config.endpoint)
	scheme := httpx.SchemeHTTP
	if config.scheme == "https" {
		scheme = httpx.SchemeHTTPS
	}

	bodySize, minBodySize, maxBodySize, err := parseBodySizes()
	if err != nil {
		fatalConfig(err.Error())
	}

	partSize, err := humanize.ParseBytes(config.multipartPartSizeInput)
	if err != nil {
		fatalConfig("multipart-part-size: " + err.Error())
	}

	if err := os.MkdirAll(config.objectStoreDir, 0755); err != nil {
		fatalConfig("object-store-dir: " + err.Error())
	}
	objects, err := objectmanager.Open(config.objectStoreDir, config.objectStorePrefix)
	if err != nil {
		fatalConfig(err.Error())
	}
	defer objects.Close()

	var authorizer auth.Authorizer
	switch config.signVersion {
	case 2:
		authorizer = auth.V2Authorizer{AccessKey: config.apiKey, SecretKey: config.secretKey}
	case 4:
		authorizer = auth.V4Authorizer{V4: auth.V4{
			AccessKey: config.apiKey,
			SecretKey: config.secretKey,
			Region:    config.region,
			Service:   "s3",
		}}
	}

	collector := stats.NewCollector([]request.Operation{
		request.OperationWrite,
		request.OperationRead,
		request.OperationDelete,
		request.OperationOverwrite,
		request.OperationMultipartInitiate,
		request.OperationMultipartPart,
		request.OperationMultipartComplete,
	})

	bus := eventbus.New(func(subscriberErr any) {
		logging.Log().Error().Interface("panic", subscriberErr).Msg("event bus subscriber failed")
	})
	bus.Subscribe(updateAdapter(objects.Update))
	bus.Subscribe(func(req *request.Request, resp *request.Response) {
		collector.Observe(req, resp, responseLatency(resp))
	})

	var mpManager *multipart.Manager
	if config.multipartEnabled && config.multipartWeight > 0 {
		mpManager = newMultipartManager(scheme, host, port, partSize)
		bus.Subscribe(updateAdapter(mpManager.Update))
	}

	requestID := newIDSupplier()
	opSupplier := newOpSupplier(scheme, host, port, objects, mpManager, bodySize, minBodySize, maxBodySize, requestID)

	scheduler, err := newScheduler(config.distribution, config.rate)
	if err != nil {
		fatalConfig(err.Error())
	}

	var stopConditions []driver.StopCondition
	if config.duration > 0 {
		stopConditions = append(stopConditions, driver.MaxDuration(config.duration))
	}
	if config.maxRequests > 0 {
		stopConditions = append(stopConditions, driver.MaxOperations(config.maxRequests))
	}
	if config.maxAborts > 0 {
		stopConditions = append(stopConditions, driver.MaxAborts(config.maxAborts))
	}

	drv := driver.New(driver.Config{
		Supplier:       opSupplier,
		Authorizer:     authorizer,
		Client:         fasthttpclient.New(0),
		Scheduler:      scheduler,
		Concurrency:    config.concurrency,
		StopConditions: stopConditions,
		Bus:            bus,
		Graceful:       config.graceful,
		OnError: func(op request.Operation) {
			collector.ObserveError(op)
		},
	})

	if config.metricsAddr != "" {
		go serveMetrics(config.metricsAddr, collector)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := drv.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", err.Error())
		os.Exit(2)
	}

	printResult(result, collector.Snapshot())

	if result.StoppedReason == "context cancelled" {
		os.Exit(2)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

// updateAdapter adapts a (req, resp) error-returning update function,
// the shape objectmanager.Manager.Update and multipart.Manager.Update
// share, into an eventbus.Subscriber: an update error is an internal
// error per the error taxonomy, so it aborts the run.
func updateAdapter(update func(req *request.Request, resp *request.Response) error) eventbus.Subscriber {
	return func(req *request.Request, resp *request.Response) {
		if err := update(req, resp); err != nil {
			panic(ogerrors.NewInternalError("event bus update failed", err))
		}
	}
}

func responseLatency(resp *request.Response) time.Duration {
	raw, ok := resp.Context["x-og-response-latency-ns"]
	if !ok {
		return 0
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ns)
}

func splitEndpoint(endpoint string) (host string, port int) {
	h, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return endpoint, 0
	}
	return h, n
}

func parseBodySizes() (fixed, minSize, maxSize int64, err error) {
	if config.minBodySizeInput != notSetString || config.maxBodySizeInput != notSetString {
		if config.minBodySizeInput == notSetString || config.maxBodySizeInput == notSetString {
			return 0, 0, 0, fmt.Errorf("min-body-size and max-body-size must be set together")
		}
		minParsed, err := humanize.ParseBytes(config.minBodySizeInput)
		if err != nil {
			return 0, 0, 0, err
		}
		maxParsed, err := humanize.ParseBytes(config.maxBodySizeInput)
		if err != nil {
			return 0, 0, 0, err
		}
		if minParsed > maxParsed {
			return 0, 0, 0, fmt.Errorf("min-body-size must be <= max-body-size")
		}
		return 0, int64(minParsed), int64(maxParsed), nil
	}
	size, err := humanize.ParseBytes(config.bodySizeInput)
	if err != nil {
		return 0, 0, 0, err
	}
	return int64(size), 0, 0, nil
}

func newIDSupplier() func(ctx map[string]string) string {
	counter := supplier.NewRanged(0, 1<<62, supplier.RangedCycle, nil)
	return func(ctx map[string]string) string {
		return strconv.FormatInt(counter.Get(ctx), 10)
	}
}

func serveMetrics(addr string, collector *stats.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Log().Error().Err(err).Msg("metrics server failed")
	}
}
