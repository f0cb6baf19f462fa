package algo

import (
	"fmt"
	"math"
)

// 分箱：左闭右开区间[Lo, Hi)，最后一个分箱为闭区间
type Bin struct {
	Lo float64
	Hi float64
}

func (b Bin) Mid() float64 {
	return (b.Lo + b.Hi) / 2
}

// 等宽分箱，由(start, end, width)确定
type Bins struct {
	start float64
	end   float64
	width float64
	n     int
}

// NewBins 生成边界 start + k*width, k = 0..ceil((end-start)/width)
func NewBins(start, end, width float64) (*Bins, error) {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsNaN(width) {
		return nil, fmt.Errorf("%w: NaN bin parameter", ErrConfig)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: bin width %v should be positive", ErrConfig, width)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: axis end %v should be greater than start %v", ErrConfig, end, start)
	}
	span := math.Ceil((end - start) / width)
	if math.IsInf(span, 0) || span > MAX_BINS {
		return nil, fmt.Errorf("%w: %v bins exceed the limit of %d", ErrConfig, span, MAX_BINS)
	}
	n := max(int(span), 1)
	return &Bins{start: start, end: end, width: width, n: n}, nil
}

func (b *Bins) Len() int {
	return b.n
}

func (b *Bins) Start() float64 {
	return b.start
}

func (b *Bins) End() float64 {
	return b.end
}

// 第k条边界，直接由k计算，避免累加误差
func (b *Bins) edge(k int) float64 {
	return b.start + float64(k)*b.width
}

func (b *Bins) Bin(i int) Bin {
	return Bin{Lo: b.edge(i), Hi: b.edge(i + 1)}
}

func (b *Bins) All() []Bin {
	bins := make([]Bin, b.n)
	for i := range bins {
		bins[i] = b.Bin(i)
	}
	return bins
}

// Locate 返回v所属分箱下标；[start, end]之外的值返回false（丢弃而不是截断）
func (b *Bins) Locate(v float64) (int, bool) {
	if math.IsNaN(v) || v < b.start || v > b.end {
		return 0, false
	}
	k := int(math.Floor((v - b.start) / b.width))
	// 浮点除法可能偏离一格，用边界值校正
	if k > 0 && v < b.edge(k) {
		k--
	}
	if k+1 < b.n && v >= b.edge(k+1) {
		k++
	}
	if k >= b.n {
		// 只有v == end且end恰为最后一条边界时出现
		k = b.n - 1
	}
	return k, true
}
