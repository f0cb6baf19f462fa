package algo

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "algo")

const (
	// 一小时的秒数
	SECONDS_PER_HOUR = 3600
	// 一分钟的秒数
	SECONDS_PER_MINUTE = 60

	// 空间连接时每块点的数量
	DEFAULT_CHUNK_SIZE = 10000
	// 单次查询的分箱数上限
	MAX_BINS = 1_000_000
)

var (
	// 错误：缺失或重复的主键、空输入
	ErrSchema = errors.New("schema error")
	// 错误：分箱参数或算子非法
	ErrConfig = errors.New("config error")
	// 错误：坐标系不一致或几何体非法
	ErrGeometry = errors.New("geometry error")
)
