package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eqasim-org/drt-analysis/config"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/eqasim-org/drt-analysis/report"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var (
	log = logrus.WithField("module", "main")

	// 配置信息
	configPath     = flag.String("config", "", "yaml config file (optional)")
	mode           = flag.String("mode", "bin", "analysis mode [impute, bin, zonal, od, grid, summary, predictions, diff, distance, occupancy, serve]")
	mongoURI       = flag.String("mongo_uri", "", "mongo db uri (overrides config)")
	tripsPathStr   = flag.String("trips", "", "drt trip table [format: {fspath} or {db}.{col}]")
	zonesPathStr   = flag.String("zones", "", "zone layer, shapefile or geojson [format: {fspath} or {db}.{col}]")
	predictionsStr = flag.String("predictions", "", "drt prediction table path")
	vehiclesStr    = flag.String("vehicles", "", "vehicle distance table path")
	occupancyStr   = flag.String("occupancy", "", "vehicle occupancy time profile path")
	cacheDir       = flag.String("cache", "", "input cache dir path (empty means disable cache)")
	crs            = flag.String("crs", "", "coordinate reference system of trips and zones (overrides config)")
	outDir         = flag.String("out", "", "output dir for csv tables (empty means stdout)")
	sqlitePath     = flag.String("sqlite", "", "sqlite result database path (overrides config)")
	grpcEndpoint   = flag.String("listen", "localhost:52101", "analysis service listening address")
	logLevel       = flag.String("log-level", "", "log level [debug, info, warn, error, fatal, panic] (overrides config)")

	// 分箱查询
	queryName         = flag.String("query", "", "query preset name from config")
	axis              = flag.String("axis", "time", "bin axis [time, distance]")
	binStart          = flag.Float64("start", 0, "first bin edge (hours for time, meters for distance)")
	binEnd            = flag.Float64("end", 24, "last bin edge (hours for time, meters for distance)")
	binWidth          = flag.Float64("width", 60, "bin width (minutes for time, meters for distance)")
	operator          = flag.String("op", "mean", "bin operator [mean, median, count, sum-ratio, q90]")
	metric            = flag.String("metric", "wait_time", "trip metric to aggregate")
	denominator       = flag.String("denominator", "router_unshared_time", "denominator metric of sum-ratio")
	filterRouterZeros = flag.Bool("filter-router-zeros", false, "drop trips whose router unshared time is zero")

	// 区域分析
	endpoint      = flag.String("endpoint", "origin", "trip endpoint used for zones [origin, destination]")
	metrics       = flag.String("metrics", "wait_time", "comma separated metrics of zonal summary")
	window        = flag.String("window", "", "hour window of zonal summary, e.g. 7-9")
	fillEmpty     = flag.Bool("fill-empty", false, "fill means of zones without trips with 0")
	fixByDistance = flag.Bool("fix-by-distance", false, "assign points outside all zones to the nearest centroid")
	workers       = flag.Int("workers", 0, "spatial join workers (overrides config)")
	gridSize      = flag.Float64("grid-size", 500, "grid cell size in meters")
	topN          = flag.Int("top", 10, "rows of top lists")
	weighted      = flag.Bool("weighted", false, "weight mode share by trip weight")

	// 车辆占用
	occupancyStart = flag.Float64("occupancy.start", 0, "first hour of occupancy profile")
	occupancyEnd   = flag.Float64("occupancy.end", 24, "last hour of occupancy profile (inclusive)")
	occupancyIdle  = flag.Bool("occupancy.idle", false, "keep STAY and RELOCATE in occupancy profile")

	// 性能分析
	pprofAddr = flag.String("pprof", "", "pprof listening address (empty means disable)")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)
	if level, ok := LOG_LEVELS[cfg.LogLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", cfg.LogLevel)
	}

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	sources := &loader.Sources{MongoURI: cfg.MongoURI, CacheDir: cfg.CacheDir}
	ctx := context.Background()

	if *mode == "serve" {
		serve(ctx, cfg, sources)
		return
	}
	defer sources.Close(ctx)

	run, ok := MODES[*mode]
	if !ok {
		log.Fatalf("unknown mode: %s", *mode)
	}
	start := time.Now()
	tables, err := run(ctx, &env{cfg: cfg, sources: sources})
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
	log.Infof("%s finished in %v with %d tables", *mode, time.Since(start), len(tables))
	if err := writeTables(ctx, cfg, sources, *mode, tables); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}
}

// applyFlags 命令行参数覆盖配置文件与环境变量
func applyFlags(cfg *config.AppConfig) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.MongoURI, *mongoURI)
	override(&cfg.CacheDir, *cacheDir)
	override(&cfg.CRS, *crs)
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.Sink.SQLitePath, *sqlitePath)
	override(&cfg.Zones.Path, *zonesPathStr)
	if *fixByDistance {
		cfg.Impute.FixByDistance = true
	}
	if *workers > 0 {
		cfg.Impute.Workers = *workers
	}
}

// writeTables 输出CSV并写入配置的结果库
func writeTables(ctx context.Context, cfg *config.AppConfig, sources *loader.Sources, mode string, tables []report.Table) error {
	for _, t := range tables {
		if err := writeCSV(*outDir, t, cfg.DelimiterRune()); err != nil {
			return err
		}
	}
	sink, err := openSinks(ctx, cfg, sources)
	if err != nil || sink == nil {
		return err
	}
	defer sink.Close(ctx)
	run := report.NewRun(mode, *tripsPathStr)
	for _, t := range tables {
		if err := sink.Write(ctx, run, t); err != nil {
			return err
		}
	}
	log.Infof("stored %d tables as run %s", len(tables), run.ID)
	return nil
}

func writeCSV(dir string, t report.Table, delimiter rune) error {
	if dir == "" {
		os.Stdout.WriteString("# " + t.Name + "\n")
		return report.WriteCSV(os.Stdout, t, delimiter)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(dir + string(os.PathSeparator) + t.Name + ".csv")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteCSV(f, t, delimiter); err != nil {
		return err
	}
	log.Infof("wrote %d rows to %s", t.Len(), f.Name())
	return nil
}

func openSinks(ctx context.Context, cfg *config.AppConfig, sources *loader.Sources) (report.Sink, error) {
	var sinks report.MultiSink
	if cfg.Sink.SQLitePath != "" {
		s, err := report.OpenSQLite(ctx, cfg.Sink.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Sink.Mongo != "" {
		p, err := loader.NewPath(cfg.Sink.Mongo)
		if err != nil {
			return nil, err
		}
		if p == nil || p.IsFile() {
			return nil, errors.New("mongo sink must be {db}.{col}")
		}
		client, err := sources.Client(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, report.NewMongoSink(client.Database(p.DB).Collection(p.Coll)))
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func serve(ctx context.Context, cfg *config.AppConfig, sources *loader.Sources) {
	tripsPath, err := loader.NewPath(*tripsPathStr)
	if err != nil {
		log.Fatalf("invalid trips path: %s", err)
	}
	zonesPath, err := loader.NewPath(cfg.Zones.Path)
	if err != nil {
		log.Fatalf("invalid zones path: %s", err)
	}
	collector := NewCollector()
	// 启动分析服务
	server, err := NewAnalysisServer(ctx, cfg, sources, tripsPath, zonesPath, collector)
	if err != nil {
		log.Fatalf("failed to start analysis server: %v", err)
	}

	// 启动tcp监听和初始化connect服务端
	mux := http.NewServeMux()
	server.Register(mux)
	mux.Handle("/metrics", collector.Handler())

	addr := *grpcEndpoint
	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// SIGHUP重新加载数据
	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			log.Info("reloading...")
			if err := server.Refresh(ctx); err != nil {
				log.Errorf("failed to reload: %v", err)
			}
		}
	}()

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	//监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		// 退出connect-go
		s.Shutdown(shutdownCtx)
		// 退出分析服务
		server.Close()
	}()

	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	time.Sleep(1 * time.Second) // 延迟等待"优雅退出"
	log.Info("analysis closes")
}
