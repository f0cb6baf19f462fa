package config

import (
	"fmt"
	"os"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.WithField("module", "config")

// 环境变量覆盖配置文件
const (
	ENV_MONGO_URI   = "DRT_MONGO_URI"
	ENV_CACHE_DIR   = "DRT_CACHE_DIR"
	ENV_SQLITE_PATH = "DRT_SQLITE_PATH"
	ENV_LOG_LEVEL   = "DRT_LOG_LEVEL"
	ENV_CRS         = "DRT_CRS"
)

func Default() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		Delimiter: string(loader.DEFAULT_DELIMITER),
		Columns:   loader.DefaultTripColumns(),
	}
}

// Load 读取.env、YAML配置文件（可为空）与环境变量并校验
func Load(path string) (*AppConfig, error) {
	// .env不存在时忽略
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", algo.ErrConfig, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse 在cfg已有值的基础上解析YAML，未出现的字段保持不变
func Parse(data []byte, cfg *AppConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse yaml: %v", algo.ErrConfig, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&cfg.MongoURI, ENV_MONGO_URI)
	override(&cfg.CacheDir, ENV_CACHE_DIR)
	override(&cfg.Sink.SQLitePath, ENV_SQLITE_PATH)
	override(&cfg.LogLevel, ENV_LOG_LEVEL)
	override(&cfg.CRS, ENV_CRS)
}

func Validate(cfg *AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", algo.ErrConfig, err)
	}
	names := make(map[string]struct{}, len(cfg.Queries))
	for _, q := range cfg.Queries {
		if _, ok := names[q.Name]; ok {
			return fmt.Errorf("%w: duplicate query %q", algo.ErrConfig, q.Name)
		}
		names[q.Name] = struct{}{}
	}
	return nil
}

// ValidateQuery 校验单个查询，例如服务请求中的查询
func ValidateQuery(q QueryConfig) error {
	if err := validator.New().Struct(q); err != nil {
		return fmt.Errorf("%w: %v", algo.ErrConfig, err)
	}
	return nil
}

func (c *AppConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return loader.DEFAULT_DELIMITER
	}
	return []rune(c.Delimiter)[0]
}

func (c *AppConfig) TableOptions() loader.TableOptions {
	return loader.TableOptions{Delimiter: c.DelimiterRune(), Columns: c.Columns}
}

func (c *AppConfig) ZoneOptions() loader.ZoneOptions {
	return loader.ZoneOptions{IDField: c.Zones.IDField, NameField: c.Zones.NameField, CRS: c.CRS}
}

func (c *AppConfig) ImputeOptions() analysis.ImputeOptions {
	return analysis.ImputeOptions{
		FixByDistance: c.Impute.FixByDistance,
		ChunkSize:     c.Impute.ChunkSize,
		Workers:       c.Impute.Workers,
		CRS:           c.CRS,
	}
}

// Query 按名称取查询预设
func (c *AppConfig) Query(name string) (QueryConfig, bool) {
	for _, q := range c.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QueryConfig{}, false
}

// BinnedQuery 转为分析查询；Start/End/Width使用轴的原生单位（秒或米）
func (q QueryConfig) BinnedQuery() (analysis.BinnedQuery, error) {
	axis, err := analysis.ParseAxis(q.Axis)
	if err != nil {
		return analysis.BinnedQuery{}, err
	}
	op, err := algo.ParseOperator(q.Operator)
	if err != nil {
		return analysis.BinnedQuery{}, err
	}
	out := analysis.BinnedQuery{
		Axis:     axis,
		Start:    q.Start,
		End:      q.End,
		Width:    q.Width,
		Operator: op,
		Metric:   analysis.Metric(q.Metric),
	}
	if op == algo.OpSumRatio {
		den, err := analysis.ParseMetric(q.Denominator)
		if err != nil {
			return analysis.BinnedQuery{}, err
		}
		out = out.ComputedDelayFactor(den)
	}
	return out, nil
}
