package analysis

import (
	"sort"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
)

type ODPair struct {
	Origin      string
	Destination string
}

// OD对上的延误系数统计
type ODCell struct {
	ODPair
	Trips int
	// 逐条延误系数的均值
	MeanDelayFactor          float64
	MeanDelayFactorEstimated float64
	// sum(总行程时间)/sum(直达时间)
	RatioDelayFactor          float64
	RatioDelayFactorEstimated float64
}

// ODDelayFactors 起点与终点分别分配区域后按区域对汇总延误系数
// 路由直达时间为0的出行不参与，任一端未分配的出行跳过
func ODDelayFactors(trips *TripTable, layer *ZoneLayer, opts ImputeOptions) ([]ODCell, error) {
	kept := trips.Filter(NonZero(MetricRouterUnsharedTime))
	if kept.Len() == 0 {
		return nil, nil
	}
	origins, err := ImputeTrips(kept, layer, Origin, opts)
	if err != nil {
		return nil, err
	}
	destinations, err := ImputeTrips(kept, layer, Destination, opts)
	if err != nil {
		return nil, err
	}
	type acc struct {
		n                       int
		df, dfEst               float64
		total, router, estimate float64
	}
	cells := make(map[ODPair]*acc)
	skipped := 0
	for _, t := range kept.trips {
		o, d := origins[t.ID], destinations[t.ID]
		if !o.Assigned() || !d.Assigned() {
			skipped++
			continue
		}
		key := ODPair{Origin: o.ZoneID, Destination: d.ZoneID}
		c, ok := cells[key]
		if !ok {
			c = &acc{}
			cells[key] = c
		}
		c.n++
		c.df += t.DelayFactor
		c.dfEst += t.DelayFactorEstimated()
		c.total += t.TotalTravelTime
		c.router += t.RouterUnsharedTime
		c.estimate += t.EstimatedUnsharedTime
	}
	if skipped > 0 {
		log.Debugf("%d trips skipped in OD matrix: endpoint outside all zones", skipped)
	}
	out := make([]ODCell, 0, len(cells))
	for key, c := range cells {
		n := float64(c.n)
		out = append(out, ODCell{
			ODPair:                    key,
			Trips:                     c.n,
			MeanDelayFactor:           c.df / n,
			MeanDelayFactorEstimated:  c.dfEst / n,
			RatioDelayFactor:          c.total / c.router,
			RatioDelayFactorEstimated: c.total / c.estimate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin != out[j].Origin {
			return algo.LessID(out[i].Origin, out[j].Origin)
		}
		return algo.LessID(out[i].Destination, out[j].Destination)
	})
	return out, nil
}
