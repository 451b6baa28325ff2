// Command profile-viz renders the most recently recorded profiles for one
// scan head/camera/laser as an HTML scatter chart, for visually sanity
// checking an alignment or window configuration offline.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/scanworks/scanhead-client/internal/profilelog"
	"github.com/scanworks/scanhead-client/internal/wire"
)

func main() {
	dbPath := flag.String("db", "", "path to a profilelog sqlite database")
	headID := flag.Uint("head", 0, "head id")
	cameraID := flag.Uint("camera", 0, "camera id")
	laserID := flag.Uint("laser", 0, "laser id")
	limit := flag.Int("limit", 5, "number of most recent profiles to plot")
	outPath := flag.String("out", "profiles.html", "output HTML path")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("profile-viz: -db is required")
	}

	store, err := profilelog.Open(*dbPath)
	if err != nil {
		log.Fatalf("profile-viz: open %s: %v", *dbPath, err)
	}
	defer store.Close()

	source := wire.Source{HeadID: uint8(*headID), CameraID: uint8(*cameraID), LaserID: uint8(*laserID)}
	records, err := store.Recent(source, *limit)
	if err != nil {
		log.Fatalf("profile-viz: query recent profiles: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("profile-viz: no recorded profiles for head=%d camera=%d laser=%d", *headID, *cameraID, *laserID)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Scan profile XY points",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (in)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (in)"}),
	)

	for i, rec := range records {
		points := make([]opts.ScatterData, 0, rec.ValidPointCount)
		for _, pt := range rec.Points {
			if pt.X == 0 && pt.Y == 0 {
				continue
			}
			points = append(points, opts.ScatterData{Value: [2]float64{pt.X, pt.Y}})
		}
		scatter.AddSeries(seriesName(i, rec.TimestampNS), points)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("profile-viz: create %s: %v", *outPath, err)
	}
	defer out.Close()

	if err := scatter.Render(out); err != nil {
		log.Fatalf("profile-viz: render chart: %v", err)
	}
	log.Printf("profile-viz: wrote %s", *outPath)
}

func seriesName(i int, timestampNS uint64) string {
	return "profile " + strconv.Itoa(i) + " (ts=" + strconv.FormatUint(timestampNS, 10) + ")"
}
