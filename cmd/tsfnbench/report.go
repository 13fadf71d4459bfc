package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SystemInfo describes the machine a report was taken on.
type SystemInfo struct {
	CPUModel   string  `json:"cpu_model"`
	CPUSpeed   float64 `json:"cpu_speed_mhz"`
	NumCPU     int     `json:"num_cpu"`
	GOMAXPROCS int     `json:"gomaxprocs"`
	TotalRAM   uint64  `json:"total_ram_bytes"`
	GOOS       string  `json:"goos"`
	GOARCH     string  `json:"goarch"`
}

// Report is one run of the command.
type Report struct {
	SessionTime string     `json:"session_time"`
	System      SystemInfo `json:"system"`
	Results     []Result   `json:"results"`
}

func gatherSystemInfo() SystemInfo {
	info := SystemInfo{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUSpeed = cpus[0].Mhz
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalRAM = vm.Total
	}
	return info
}

func newReport(results []Result) Report {
	return Report{
		SessionTime: time.Now().Format(time.RFC3339),
		System:      gatherSystemInfo(),
		Results:     results,
	}
}

// appendReport adds r to the JSON array stored in path, creating the file
// if it does not exist.
func appendReport(path string, r Report) error {
	var reports []Report
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &reports); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
		}
	case os.IsNotExist(err):
	default:
		return err
	}

	reports = append(reports, r)
	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// writePlot renders delivered items per second against producer count.
func writePlot(path string, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Threadsafe function throughput (capacity %d, %s)", results[0].Capacity, results[0].Mode)
	p.X.Label.Text = "Producers"
	p.Y.Label.Text = "Items/sec"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(results))
	for i, r := range results {
		pts[i].X = float64(r.Producers)
		pts[i].Y = r.Throughput
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = plotutil.SoftColors[0]
	line.Width = vg.Points(2)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = plotutil.SoftColors[0]

	p.Add(line, scatter)
	p.Legend.Add("delivered", line, scatter)
	p.Legend.Top = true

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}
