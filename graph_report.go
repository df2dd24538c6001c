/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/charts"
)

type ChartLine struct {
	XValues []float64
	YValues []float64
}

// parseTickData reads tick csv written by Report: Tick,Batches,Rows
func parseTickData(path string) (map[string]*ChartLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	lines := map[string]*ChartLine{
		"rows":    {},
		"batches": {},
	}
	// skip csv header
	_, _ = reader.Read()
	// every line starts at the origin so a one second run still has a range to draw
	for _, l := range lines {
		l.XValues = append(l.XValues, 0)
		l.YValues = append(l.YValues, 0)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(TickCsvHeader) {
			return nil, errors.New("malformed csv")
		}
		tick, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, err
		}
		batches, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, err
		}
		rows, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, err
		}
		lines["rows"].XValues = append(lines["rows"].XValues, tick)
		lines["rows"].YValues = append(lines["rows"].YValues, rows)
		lines["batches"].XValues = append(lines["batches"].XValues, tick)
		lines["batches"].YValues = append(lines["batches"].YValues, batches)
	}
	for _, v := range lines {
		if len(v.XValues) < 2 || len(v.YValues) < 2 {
			return nil, errors.New("empty csv, nothing to plot")
		}
	}
	return lines, nil
}

// ThroughputChart rows and batches sent per second of the run
func ThroughputChart(path string, title string) (*charts.Line, error) {
	d, err := parseTickData(path)
	if err != nil {
		return nil, err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.DataZoomOpts{},
		charts.TitleOpts{Title: title},
		charts.XAxisOpts{Name: "Time (sec)"},
		charts.YAxisOpts{Name: "Per second"},
	)
	line.AddXAxis(d["rows"].XValues)
	for _, k := range []string{"rows", "batches"} {
		line.AddYAxis(k, d[k].YValues, defaultMaxLabel(k)...)
	}
	return line, nil
}

func RenderEChart(data *charts.Line, name string) error {
	f, err := CreateFileOrReplace(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return data.Render(f)
}

// draws max label for every line
func defaultMaxLabel(metric string) []charts.SeriesOptser {
	return []charts.SeriesOptser{
		charts.MPNameTypeItem{Name: "max " + metric, Type: "max"},
		charts.MPStyleOpts{Label: charts.LabelTextOpts{Show: true}},
	}
}
