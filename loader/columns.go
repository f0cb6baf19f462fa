package loader

// 出行统计表的列名映射，留空的列不读取
type TripColumns struct {
	ID                    string `yaml:"id"`
	PersonID              string `yaml:"person_id"`
	TripIndex             string `yaml:"trip_index"`
	Mode                  string `yaml:"mode"`
	Weight                string `yaml:"weight"`
	StartTime             string `yaml:"start_time" validate:"required"`
	ArrivalTime           string `yaml:"arrival_time"`
	TotalTravelTime       string `yaml:"total_travel_time"`
	RouterUnsharedTime    string `yaml:"router_unshared_time"`
	EstimatedUnsharedTime string `yaml:"estimated_unshared_time"`
	DelayFactor           string `yaml:"delay_factor"`
	WaitTime              string `yaml:"wait_time"`
	StartX                string `yaml:"start_x" validate:"required"`
	StartY                string `yaml:"start_y" validate:"required"`
	EndX                  string `yaml:"end_x" validate:"required"`
	EndY                  string `yaml:"end_y" validate:"required"`
}

// DRT出行统计输出（drt_drtTripsStats.csv）的表头
func DefaultTripColumns() TripColumns {
	return TripColumns{
		PersonID:              "personId",
		TripIndex:             "tripIndex",
		StartTime:             "startTime",
		ArrivalTime:           "arrivalTime",
		TotalTravelTime:       "totalTravelTime",
		RouterUnsharedTime:    "routerUnsharedTime",
		EstimatedUnsharedTime: "estimatedUnsharedTime",
		DelayFactor:           "delayFactor",
		WaitTime:              "waitTime",
		StartX:                "startX",
		StartY:                "startY",
		EndX:                  "endX",
		EndY:                  "endY",
	}
}

// 以默认值补齐未设置的列
func (c TripColumns) withDefaults() TripColumns {
	d := DefaultTripColumns()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.PersonID, d.PersonID)
	fill(&c.TripIndex, d.TripIndex)
	fill(&c.StartTime, d.StartTime)
	fill(&c.ArrivalTime, d.ArrivalTime)
	fill(&c.TotalTravelTime, d.TotalTravelTime)
	fill(&c.RouterUnsharedTime, d.RouterUnsharedTime)
	fill(&c.EstimatedUnsharedTime, d.EstimatedUnsharedTime)
	fill(&c.DelayFactor, d.DelayFactor)
	fill(&c.WaitTime, d.WaitTime)
	fill(&c.StartX, d.StartX)
	fill(&c.StartY, d.StartY)
	fill(&c.EndX, d.EndX)
	fill(&c.EndY, d.EndY)
	return c
}

// 模式选择预测表（drt_drtTripsPredictions.csv）的表头
var PREDICTION_COLUMNS = struct {
	PersonID, TripIndex, TravelTime, AccessEgressTime, Cost, WaitingTime, TravelDistance, MaxTravelTime, DirectRideTime string
}{
	PersonID:         "personId",
	TripIndex:        "tripIndex",
	TravelTime:       "travelTime_min",
	AccessEgressTime: "accessEgressTime_min",
	Cost:             "cost_MU",
	WaitingTime:      "waitingTime_min",
	TravelDistance:   "travelDistance_km",
	MaxTravelTime:    "maxTravelTime_min",
	DirectRideTime:   "directRideTime_min",
}

// 车辆里程表（vehicleDistanceStats_drt.csv）的表头
var VEHICLE_COLUMNS = struct {
	ID, Distance, EmptyDistance string
}{
	ID:            "vehicleId",
	Distance:      "drivenDistance_m",
	EmptyDistance: "emptyDistance_m",
}

// 票价表（drt_drtCosts.csv）的表头，列名中的空格在读取时去掉
var COST_COLUMNS = struct {
	Iteration, CostPerKm string
}{
	Iteration: "iteration",
	CostPerKm: "drtCostPerKm",
}

// 占用剖面（occupancy_time_profiles_drt.txt）的时刻列，其余列为各状态车辆数
const OCCUPANCY_TIME_COLUMN = "time"
