package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/samber/lo"
)

// 空闲状态，默认不参与占用剖面
var IDLE_STATES = []string{"STAY", "RELOCATE"}

// 某一时刻各状态的车辆数
type OccupancySample struct {
	Time   float64   // 当日零点起的秒数
	Counts []float64 // 与States一一对应
}

// OccupancyProfile 车辆占用时间剖面，每个状态（如STAY、0 pax、1 pax）一列车辆数
type OccupancyProfile struct {
	States  []string
	Samples []OccupancySample
}

func NewOccupancyProfile(states []string, samples []OccupancySample) (*OccupancyProfile, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: occupancy profile has no states", algo.ErrSchema)
	}
	if dup := lo.FindDuplicates(states); len(dup) > 0 {
		return nil, fmt.Errorf("%w: duplicate occupancy states %v", algo.ErrSchema, dup)
	}
	for i, s := range samples {
		if len(s.Counts) != len(states) {
			return nil, fmt.Errorf("%w: occupancy sample %d has %d counts, want %d", algo.ErrSchema, i, len(s.Counts), len(states))
		}
	}
	out := &OccupancyProfile{
		States:  append([]string(nil), states...),
		Samples: make([]OccupancySample, len(samples)),
	}
	copy(out.Samples, samples)
	return out, nil
}

// ParseClock 解析"HH:MM"形式的时刻，小时可以超过24
func ParseClock(s string) (float64, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", algo.ErrSchema, s)
	}
	hours, err1 := strconv.Atoi(h)
	minutes, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hours < 0 || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("%w: invalid time %q", algo.ErrSchema, s)
	}
	return algo.HoursToSeconds(float64(hours)) + algo.MinutesToSeconds(float64(minutes)), nil
}

type OccupancyOptions struct {
	// 时段的起止小时，两端都包含
	StartHour float64
	EndHour   float64
	// 保留STAY与RELOCATE
	KeepIdle bool
}

// Window 按时刻排序并截取时段，默认去掉空闲状态
func (p *OccupancyProfile) Window(opts OccupancyOptions) (*OccupancyProfile, error) {
	if opts.StartHour < 0 || opts.EndHour < opts.StartHour {
		return nil, fmt.Errorf("%w: invalid occupancy window %g-%g", algo.ErrConfig, opts.StartHour, opts.EndHour)
	}
	keep := make([]int, 0, len(p.States))
	for i, s := range p.States {
		if opts.KeepIdle || !lo.Contains(IDLE_STATES, s) {
			keep = append(keep, i)
		}
	}
	from, to := algo.HoursToSeconds(opts.StartHour), algo.HoursToSeconds(opts.EndHour)
	out := &OccupancyProfile{States: make([]string, len(keep))}
	for j, i := range keep {
		out.States[j] = p.States[i]
	}
	for _, s := range p.Samples {
		if s.Time < from || s.Time > to {
			continue
		}
		counts := make([]float64, len(keep))
		for j, i := range keep {
			counts[j] = s.Counts[i]
		}
		out.Samples = append(out.Samples, OccupancySample{Time: s.Time, Counts: counts})
	}
	sort.SliceStable(out.Samples, func(i, j int) bool { return out.Samples[i].Time < out.Samples[j].Time })
	return out, nil
}

// MeanCounts 每个状态在各时刻的平均车辆数，没有样本时为NaN
func (p *OccupancyProfile) MeanCounts() []float64 {
	out := make([]float64, len(p.States))
	for j := range out {
		out[j] = mean(lo.Map(p.Samples, func(s OccupancySample, _ int) float64 { return s.Counts[j] }))
	}
	return out
}
