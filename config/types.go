package config

import "github.com/eqasim-org/drt-analysis/loader"

// 区域图层来源
type ZonesConfig struct {
	Path      string `yaml:"path"`
	IDField   string `yaml:"id_field"`
	NameField string `yaml:"name_field"`
}

type ImputeConfig struct {
	FixByDistance bool `yaml:"fix_by_distance"`
	ChunkSize     int  `yaml:"chunk_size" validate:"gte=0"`
	Workers       int  `yaml:"workers" validate:"gte=0"`
}

// 命名的分箱查询预设
// start/end/width按轴的原始单位：时间轴为秒，距离轴为米，
// 与-start/-end/-width参数（小时、分钟）不同，不做换算
type QueryConfig struct {
	Name        string  `yaml:"name" validate:"required"`
	Axis        string  `yaml:"axis" validate:"required,oneof=time distance"`
	Start       float64 `yaml:"start"`
	End         float64 `yaml:"end" validate:"gtfield=Start"`
	Width       float64 `yaml:"width" validate:"gt=0"`
	Operator    string  `yaml:"operator" validate:"required,oneof=mean median count sum-ratio q90"`
	Metric      string  `yaml:"metric"`
	Denominator string  `yaml:"denominator" validate:"required_if=Operator sum-ratio"`
	// 丢弃路由直达时间为0的出行
	FilterRouterZeros bool `yaml:"filter_router_zeros"`
}

type SmoothingConfig struct {
	Method string  `yaml:"method" validate:"omitempty,oneof=window msa"`
	Param  float64 `yaml:"param" validate:"gte=0"`
}

// 结果输出
type SinkConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	// 形如{db}.{col}
	Mongo string `yaml:"mongo"`
}

// AppConfig 配置文件的根结构，命令行参数可以覆盖其中的值
type AppConfig struct {
	MongoURI  string             `yaml:"mongo_uri"`
	CacheDir  string             `yaml:"cache_dir"`
	CRS       string             `yaml:"crs"`
	LogLevel  string             `yaml:"log_level" validate:"omitempty,oneof=debug info warn error fatal panic"`
	Delimiter string             `yaml:"delimiter" validate:"omitempty,len=1"`
	Columns   loader.TripColumns `yaml:"columns"`
	Zones     ZonesConfig        `yaml:"zones"`
	Impute    ImputeConfig       `yaml:"impute"`
	Queries   []QueryConfig      `yaml:"queries" validate:"dive"`
	Smoothing SmoothingConfig    `yaml:"smoothing"`
	Sink      SinkConfig         `yaml:"sink"`
}
