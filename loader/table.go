package loader

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "loader")

// MATSim输出默认以分号分隔
const DEFAULT_DELIMITER = ';'

// 按列名读取的分隔符文本表，所有单元格按字符串读入后再严格解析
type table struct {
	df     dataframe.DataFrame
	source string
}

func readTable(r io.Reader, delimiter rune, source string) (*table, error) {
	if delimiter == 0 {
		delimiter = DEFAULT_DELIMITER
	}
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(delimiter),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", algo.ErrSchema, source, df.Err)
	}
	log.Debugf("read %d rows x %d columns from %s", df.Nrow(), df.Ncol(), source)
	return &table{df: df, source: source}, nil
}

func (t *table) rows() int {
	return t.df.Nrow()
}

// compactNames 去掉列名中的空格
func (t *table) compactNames() error {
	err := t.df.SetNames(lo.Map(t.df.Names(), func(n string, _ int) string {
		return strings.ReplaceAll(n, " ", "")
	})...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", algo.ErrSchema, t.source, err)
	}
	return nil
}

func (t *table) has(col string) bool {
	return col != "" && lo.Contains(t.df.Names(), col)
}

// 缺失的可选列返回nil
func (t *table) strings(col string, required bool) ([]string, error) {
	if !t.has(col) {
		if required {
			return nil, fmt.Errorf("%w: %s has no column %q", algo.ErrSchema, t.source, col)
		}
		return nil, nil
	}
	s := t.df.Col(col)
	if s.Err != nil {
		return nil, fmt.Errorf("%w: %s column %q: %v", algo.ErrSchema, t.source, col, s.Err)
	}
	return lo.Map(s.Records(), func(v string, _ int) string { return strings.TrimSpace(v) }), nil
}

// 缺失的可选列全部为NaN；必需列的空单元格视为错误
func (t *table) floats(col string, required bool) ([]float64, error) {
	raw, err := t.strings(col, required)
	if err != nil {
		return nil, err
	}
	out := make([]float64, t.rows())
	if raw == nil {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}
	for i, v := range raw {
		if v == "" || v == "NaN" {
			if required {
				return nil, fmt.Errorf("%w: %s row %d column %q has no value", algo.ErrSchema, t.source, i+1, col)
			}
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d column %q: %q is not a number", algo.ErrSchema, t.source, i+1, col, v)
		}
		out[i] = f
	}
	return out, nil
}

// 缺失的可选列全部为0
func (t *table) ints(col string, required bool) ([]int, error) {
	raw, err := t.strings(col, required)
	if err != nil {
		return nil, err
	}
	out := make([]int, t.rows())
	for i, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d column %q: %q is not an integer", algo.ErrSchema, t.source, i+1, col, v)
		}
		out[i] = n
	}
	return out, nil
}

// 出错后不再读取，错误在最后统一检查
type columnReader struct {
	t   *table
	err error
}

func (r *columnReader) strings(col string, required bool) []string {
	if r.err != nil {
		return nil
	}
	v, err := r.t.strings(col, required)
	r.err = err
	return v
}

func (r *columnReader) floats(col string, required bool) []float64 {
	if r.err != nil {
		return nil
	}
	v, err := r.t.floats(col, required)
	r.err = err
	return v
}

func (r *columnReader) ints(col string, required bool) []int {
	if r.err != nil {
		return nil
	}
	v, err := r.t.ints(col, required)
	r.err = err
	return v
}
