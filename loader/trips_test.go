package loader_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripsCSV = `personId;tripIndex;startTime;waitTime;totalTravelTime;routerUnsharedTime;estimatedUnsharedTime;delayFactor;startX;startY;endX;endY
p1;0;25200;120;600;300;400;2;0;0;300;400
p2;1;30000.5;60;300;0;200;0;10;10;20;20
`

func TestReadTrips(t *testing.T) {
	trips, err := loader.ReadTrips(strings.NewReader(tripsCSV), "trips.csv", loader.TableOptions{})
	require.NoError(t, err)
	require.Len(t, trips, 2)

	a := trips[0]
	assert.Equal(t, "p1", a.PersonID)
	assert.Equal(t, 0, a.TripIndex)
	assert.Equal(t, 25200.0, a.StartTime)
	assert.Equal(t, 120.0, a.WaitTime)
	assert.Equal(t, orb.Point{300, 400}, a.Destination)
	assert.Equal(t, 2.0, a.DelayFactor)
	// 缺失的可选列为NaN
	assert.True(t, math.IsNaN(a.ArrivalTime))

	b := trips[1]
	assert.Equal(t, 1, b.TripIndex)
	assert.Equal(t, 30000.5, b.StartTime)
	assert.Equal(t, orb.Point{10, 10}, b.Origin)
}

func TestReadTripsCustomColumns(t *testing.T) {
	data := "id,t,x0,y0,x1,y1,mode,w\n7,100,0,0,1,1,drt,2.5\n"
	cols := loader.TripColumns{ID: "id", StartTime: "t", StartX: "x0", StartY: "y0", EndX: "x1", EndY: "y1", Mode: "mode", Weight: "w"}
	trips, err := loader.ReadTrips(strings.NewReader(data), "custom", loader.TableOptions{Delimiter: ',', Columns: cols})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "7", trips[0].ID)
	assert.Equal(t, "drt", trips[0].Mode)
	assert.Equal(t, 2.5, trips[0].Weight)
	assert.Equal(t, 100.0, trips[0].StartTime)
}

func TestReadTripsWeights(t *testing.T) {
	cols := loader.TripColumns{Weight: "weight"}
	data := "startTime;startX;startY;endX;endY;weight\n0;0;0;1;1;0\n0;0;0;1;1;\n0;0;0;1;1;4\n"
	trips, err := loader.ReadTrips(strings.NewReader(data), "weights", loader.TableOptions{Columns: cols})
	require.NoError(t, err)
	require.Len(t, trips, 3)
	assert.Equal(t, 0.0, trips[0].Weight)
	assert.Equal(t, 1.0, trips[1].Weight)
	assert.Equal(t, 4.0, trips[2].Weight)

	// 没有权重列时都为1
	trips, err = loader.ReadTrips(strings.NewReader(tripsCSV), "trips.csv", loader.TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, trips[0].Weight)
}

func TestReadTripsErrors(t *testing.T) {
	missing := "personId;startTime;startX;startY;endX\np;0;0;0;0\n"
	_, err := loader.ReadTrips(strings.NewReader(missing), "missing", loader.TableOptions{})
	assert.ErrorIs(t, err, algo.ErrSchema)

	bad := strings.Replace(tripsCSV, "25200", "seven", 1)
	_, err = loader.ReadTrips(strings.NewReader(bad), "bad", loader.TableOptions{})
	assert.ErrorIs(t, err, algo.ErrSchema)

	// 必需的坐标列不能为空
	empty := "startTime;startX;startY;endX;endY\n100;;;10;10\n"
	_, err = loader.ReadTrips(strings.NewReader(empty), "empty", loader.TableOptions{})
	assert.ErrorIs(t, err, algo.ErrSchema)

	_, err = loader.ReadTripsFile(filepath.Join(t.TempDir(), "none.csv"), loader.TableOptions{})
	assert.Error(t, err)
}

func TestReadPredictionsAndVehicles(t *testing.T) {
	preds := "personId;tripIndex;travelTime_min;waitingTime_min;cost_MU\np1;0;18;4;3.5\n"
	ps, err := loader.ReadPredictions(strings.NewReader(preds), "preds", 0)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 18.0, ps[0].TravelTimeMin)
	assert.Equal(t, 4.0, ps[0].WaitingTimeMin)
	assert.Equal(t, 3.5, ps[0].Cost)
	assert.True(t, math.IsNaN(ps[0].DirectRideMin))

	vehicles := "vehicleId;drivenDistance_m;emptyDistance_m\nv1;10000;2000\nv2;30000;3000\n"
	vs, err := loader.ReadVehicles(strings.NewReader(vehicles), "vehicles", ';')
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "v2", vs[1].ID)
	assert.Equal(t, 3000.0, vs[1].EmptyDistance)

	_, err = loader.ReadVehicles(strings.NewReader("vehicleId\nv1\n"), "vehicles", ';')
	assert.ErrorIs(t, err, algo.ErrSchema)
}

const zonesGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"zone":"A","name":"Alpha"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
{"type":"Feature","properties":{"zone":"B","name":"Beta"},"geometry":{"type":"Polygon","coordinates":[[[10,0],[20,0],[20,10],[10,10],[10,0]]]}}
]}`

func TestReadGeoJSON(t *testing.T) {
	layer, err := loader.ReadGeoJSON(strings.NewReader(zonesGeoJSON), loader.ZoneOptions{IDField: "zone", NameField: "name", CRS: "EPSG:2056"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, layer.IDs())
	assert.Equal(t, "EPSG:2056", layer.CRS)
	z, ok := layer.Zone("B")
	require.True(t, ok)
	assert.Equal(t, "Beta", z.Name)
	id, ok := layer.Locate(orb.Point{15, 5})
	assert.True(t, ok)
	assert.Equal(t, "B", id)

	// 没有编号字段时使用序号
	layer, err = loader.ReadGeoJSON(strings.NewReader(zonesGeoJSON), loader.ZoneOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, layer.IDs())

	_, err = loader.ReadGeoJSON(strings.NewReader(zonesGeoJSON), loader.ZoneOptions{IDField: "code"})
	assert.ErrorIs(t, err, algo.ErrSchema)
	_, err = loader.ReadGeoJSON(strings.NewReader("{"), loader.ZoneOptions{})
	assert.ErrorIs(t, err, algo.ErrSchema)
}

func TestReadZonesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.geojson")
	require.NoError(t, os.WriteFile(path, []byte(zonesGeoJSON), 0o644))
	layer, err := loader.ReadZonesFile(path, loader.ZoneOptions{IDField: "zone"})
	require.NoError(t, err)
	assert.Equal(t, 2, layer.Len())

	_, err = loader.ReadZonesFile(filepath.Join(dir, "zones.kml"), loader.ZoneOptions{})
	assert.ErrorIs(t, err, algo.ErrConfig)
}

func TestNewPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(file, []byte(tripsCSV), 0o644))
	p, err := loader.NewPath(file)
	require.NoError(t, err)
	assert.True(t, p.IsFile())
	assert.Equal(t, file, p.String())
	assert.Equal(t, file, p.GetCachePath())

	p, err = loader.NewPath("simulation.trips_10")
	require.NoError(t, err)
	assert.False(t, p.IsFile())
	assert.Equal(t, "simulation", p.DB)
	assert.Equal(t, "trips_10", p.Coll)
	assert.Equal(t, "simulation.trips_10.bson", p.GetCachePath())

	p, err = loader.NewPath("  ")
	assert.NoError(t, err)
	assert.Nil(t, p)

	for _, bad := range []string{"a.b.c", ".b", "nodot"} {
		_, err := loader.NewPath(bad)
		assert.ErrorIs(t, err, algo.ErrConfig, bad)
	}
}
