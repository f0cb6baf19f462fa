package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
)

// 待分配区域的点
type PointRecord struct {
	ID    string
	Point orb.Point
}

// 区域分配的来源
type AssignmentStatus int

const (
	Unassigned AssignmentStatus = iota
	Contained                   // 被区域包含
	Corrected                   // 按最近中心点修正
)

func (s AssignmentStatus) String() string {
	switch s {
	case Contained:
		return "contained"
	case Corrected:
		return "corrected"
	}
	return "unassigned"
}

type Assignment struct {
	PointID string
	ZoneID  string // Unassigned时为空
	Status  AssignmentStatus
}

func (a Assignment) Assigned() bool {
	return a.Status != Unassigned
}

type ImputeOptions struct {
	// 未匹配的点按最近区域中心点分配
	FixByDistance bool
	// 每块点的数量，<=0时使用默认值
	ChunkSize int
	// 并行处理块的协程数，<=1时顺序处理
	Workers int
	// 点的坐标系，为空时不检查
	CRS string
}

// Impute 为每个点分配至多一个区域，输出与输入顺序一致
// 分块和并行只影响内存与速度，不影响结果
func Impute(points []PointRecord, layer *ZoneLayer, opts ImputeOptions) ([]Assignment, error) {
	if layer == nil || layer.Len() == 0 {
		return nil, fmt.Errorf("%w: zone layer is empty", algo.ErrSchema)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points to impute", algo.ErrSchema)
	}
	if err := checkCRS(opts.CRS, layer.CRS); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate point id %q", algo.ErrSchema, p.ID)
		}
		if !algo.Finite(p.Point) {
			return nil, fmt.Errorf("%w: point %q has non-finite coordinates %v", algo.ErrGeometry, p.ID, p.Point)
		}
		seen[p.ID] = struct{}{}
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = algo.DEFAULT_CHUNK_SIZE
	}
	log.Debugf("imputing %d zones onto %d points by spatial join", layer.Len(), len(points))

	out := make([]Assignment, len(points))
	var unassigned atomic.Int64
	// 每块只写入自己的下标区间
	joinChunk := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a := Assignment{PointID: points[i].ID}
			if id, ok := layer.Locate(points[i].Point); ok {
				a.ZoneID, a.Status = id, Contained
			} else {
				unassigned.Add(1)
			}
			out[i] = a
		}
	}
	chunks := make([][2]int, 0, len(points)/chunkSize+1)
	for lo := 0; lo < len(points); lo += chunkSize {
		chunks = append(chunks, [2]int{lo, min(lo+chunkSize, len(points))})
	}
	if opts.Workers <= 1 {
		for _, c := range chunks {
			joinChunk(c[0], c[1])
		}
	} else {
		var wg sync.WaitGroup
		jobs := make(chan [2]int)
		wg.Add(opts.Workers)
		for w := 0; w < opts.Workers; w++ {
			go func() {
				defer wg.Done()
				for c := range jobs {
					joinChunk(c[0], c[1])
				}
			}()
		}
		for _, c := range chunks {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
	}

	if n := unassigned.Load(); n > 0 && opts.FixByDistance {
		log.Infof("fixing %d points by centroid distance join", n)
		for i := range out {
			if out[i].Status != Unassigned {
				continue
			}
			id, ok := layer.Nearest(points[i].Point)
			if !ok {
				return nil, fmt.Errorf("%w: no nearest zone for point %q", algo.ErrGeometry, points[i].ID)
			}
			out[i].ZoneID, out[i].Status = id, Corrected
		}
	} else if n > 0 {
		log.Debugf("%d points fall in no zone", n)
	}
	return out, nil
}

// ImputeTrips 为出行的起点或终点分配区域，返回trip编号到分配结果的映射
func ImputeTrips(trips *TripTable, layer *ZoneLayer, e Endpoint, opts ImputeOptions) (map[string]Assignment, error) {
	if opts.CRS == "" {
		opts.CRS = trips.CRS
	}
	assignments, err := Impute(trips.Points(e), layer, opts)
	if err != nil {
		return nil, fmt.Errorf("impute %s: %w", e, err)
	}
	out := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		out[a.PointID] = a
	}
	return out, nil
}
