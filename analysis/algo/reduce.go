package algo

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
)

// 分箱聚合算子
type Operator string

const (
	OpMean     Operator = "mean"
	OpMedian   Operator = "median"
	OpCount    Operator = "count"
	OpSumRatio Operator = "sum-ratio" // sum(分子)/sum(分母)，不是逐条比值的均值
	OpQ90      Operator = "q90"
)

var operators = map[string]Operator{
	string(OpMean):     OpMean,
	string(OpMedian):   OpMedian,
	string(OpCount):    OpCount,
	string(OpSumRatio): OpSumRatio,
	string(OpQ90):      OpQ90,
}

func ParseOperator(s string) (Operator, error) {
	if op, ok := operators[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrConfig, s)
}

// 一条待聚合记录
type Sample struct {
	Axis  float64 // 分箱轴上的值
	Value float64 // mean/median/q90使用
	Num   float64 // sum-ratio分子
	Den   float64 // sum-ratio分母
}

// 单个分箱的聚合结果
type BinValue struct {
	Bin
	Value float64
	Count int
}

type accumulator struct {
	count  int
	sum    float64
	num    float64
	den    float64
	values []float64
}

func (a *accumulator) add(s Sample, keepValues bool) {
	a.count++
	a.sum += s.Value
	a.num += s.Num
	a.den += s.Den
	if keepValues {
		a.values = append(a.values, s.Value)
	}
}

func (a *accumulator) reduce(op Operator) float64 {
	switch op {
	case OpCount:
		return float64(a.count)
	case OpSumRatio:
		if a.count == 0 {
			return math.NaN()
		}
		// 分母为0时遵循浮点语义得到Inf/NaN
		return a.num / a.den
	}
	if a.count == 0 {
		return math.NaN()
	}
	switch op {
	case OpMean:
		return a.sum / float64(a.count)
	case OpMedian:
		m, err := stats.Median(a.values)
		if err != nil {
			return math.NaN()
		}
		return m
	case OpQ90:
		return Quantile(a.values, 0.9)
	}
	return math.NaN()
}

// Aggregate 将样本按分箱归约，返回按中点升序排列的每个分箱结果
func Aggregate(samples []Sample, bins *Bins, op Operator) ([]BinValue, error) {
	if bins == nil {
		return nil, fmt.Errorf("%w: nil bins", ErrConfig)
	}
	if _, ok := operators[string(op)]; !ok {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrConfig, op)
	}
	keepValues := op == OpMedian || op == OpQ90
	accs := make([]accumulator, bins.Len())
	for _, s := range samples {
		if i, ok := bins.Locate(s.Axis); ok {
			accs[i].add(s, keepValues)
		}
	}
	out := make([]BinValue, bins.Len())
	for i := range accs {
		out[i] = BinValue{
			Bin:   bins.Bin(i),
			Value: accs[i].reduce(op),
			Count: accs[i].count,
		}
	}
	return out, nil
}
