/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"github.com/wcharczuk/go-chart"
)

// ThroughputChartPNG same data as ThroughputChart, rendered without a browser
func ThroughputChartPNG(chartTitle string, path string) (*chart.Chart, error) {
	d, err := parseTickData(path)
	if err != nil {
		return nil, err
	}
	yMax := MaxValue(d["rows"].YValues)
	if yMax <= 0 {
		yMax = 1
	}
	var series []chart.Series
	for colorIndex, key := range []string{"rows", "batches"} {
		line := chart.ContinuousSeries{
			Name: key,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(colorIndex).WithAlpha(255),
				DotWidth:    3.0,
				StrokeWidth: 3,
			},
			XValues: d[key].XValues,
			YValues: d[key].YValues,
		}
		if key == "batches" {
			line.YAxis = chart.YAxisSecondary
		}
		series = append(series, line)
	}
	chartData := &chart.Chart{
		Title: chartTitle,
		Background: chart.Style{
			Padding: chart.Box{
				Top:  20,
				Left: 150,
			},
		},
		XAxis: chart.XAxis{
			Name: "Test time (Seconds)",
		},
		YAxis: chart.YAxis{
			Name: "Rows per second",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: yMax * 1.1,
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Batches per second",
		},
		Series: series,
		Width:  800,
		Height: 600,
	}
	chartData.Elements = []chart.Renderable{
		chart.LegendLeft(chartData),
	}
	return chartData, nil
}

func RenderChart(chartData *chart.Chart, fileName string) error {
	file, err := CreateFileOrReplace(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	return chartData.Render(chart.PNG, file)
}
