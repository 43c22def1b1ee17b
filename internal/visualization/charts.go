// Package visualization renders price series charts to image files.
package visualization

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

// ChartType defines chart types
type ChartType string

const (
	ChartTypeLine     ChartType = "line"
	ChartTypeBox      ChartType = "box"
	ChartTypeForecast ChartType = "forecast"
)

// ChartConfig contains configuration for chart output
type ChartConfig struct {
	OutputDir string  `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	Format    string  `json:"format" yaml:"format" mapstructure:"format"` // png, svg or pdf
	Width     float64 `json:"width" yaml:"width" mapstructure:"width"`    // inches
	Height    float64 `json:"height" yaml:"height" mapstructure:"height"` // inches
	Commodity string  `json:"commodity" yaml:"commodity" mapstructure:"commodity"`
}

// ChartOptions contains per-chart labels
type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string
	Name   string // file name without extension
}

// Renderer draws price charts with gonum/plot and saves them under OutputDir.
type Renderer struct {
	config *ChartConfig
	logger *logrus.Logger
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DefaultChartConfig returns the default chart configuration
func DefaultChartConfig() *ChartConfig {
	return &ChartConfig{
		OutputDir: constants.DefaultChartDir,
		Format:    constants.DefaultChartFormat,
		Width:     constants.DefaultChartWidth,
		Height:    constants.DefaultChartHeight,
		Commodity: constants.DefaultCommodity,
	}
}

// NewRenderer creates a new chart renderer
func NewRenderer(config *ChartConfig, logger *logrus.Logger) (*Renderer, error) {
	if config == nil {
		config = DefaultChartConfig()
	}

	if config.OutputDir == "" {
		config.OutputDir = constants.DefaultChartDir
	}

	config.Format = strings.ToLower(strings.TrimPrefix(config.Format, "."))
	switch config.Format {
	case "":
		config.Format = constants.DefaultChartFormat
	case constants.FormatPNG, constants.FormatSVG, constants.FormatPDF:
	default:
		return nil, errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("unsupported chart format %q", config.Format))
	}

	if config.Width <= 0 {
		config.Width = constants.DefaultChartWidth
	}

	if config.Height <= 0 {
		config.Height = constants.DefaultChartHeight
	}

	if config.Commodity == "" {
		config.Commodity = constants.DefaultCommodity
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &Renderer{
		config: config,
		logger: logger,
	}, nil
}

// RenderSeries draws the price history as a line with point markers.
func (r *Renderer) RenderSeries(series *models.TimeSeries) (string, error) {
	if err := checkSeries(series); err != nil {
		return "", err
	}

	opts := ChartOptions{
		Title: fmt.Sprintf("%s Prices (%s - %s)", r.config.Commodity,
			series.Start().Format("Jan 2006"), series.End().Format("Jan 2006")),
		XLabel: constants.LabelDate,
		YLabel: constants.LabelPrice,
		Name:   constants.ChartRawSeries,
	}

	p := r.newPlot(opts)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}

	line, points, err := plotter.NewLinePoints(toXYs(series))
	if err != nil {
		return "", r.renderError(opts, err)
	}
	styleSeries(line, points)
	p.Add(line, points)

	return r.save(p, opts, ChartTypeLine)
}

// RenderSeasonality draws a box plot of prices grouped by calendar month in
// January to December order. Months without observations are left empty.
func (r *Renderer) RenderSeasonality(series *models.TimeSeries) (string, error) {
	if err := checkSeries(series); err != nil {
		return "", err
	}

	opts := ChartOptions{
		Title:  fmt.Sprintf("Seasonal Pattern of %s Prices by Month", r.config.Commodity),
		XLabel: constants.LabelMonth,
		YLabel: constants.LabelPrice,
		Name:   constants.ChartSeasonality,
	}

	p := r.newPlot(opts)
	groups := GroupByMonth(series)
	width := vg.Points(20)
	for m, values := range groups {
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(width, float64(m), plotter.Values(values))
		if err != nil {
			return "", r.renderError(opts, err)
		}
		box.FillColor = color.RGBA{R: 100, G: 149, B: 237, A: 255}
		p.Add(box)
	}

	p.NominalX(monthNames...)
	p.X.Min, p.X.Max = -0.5, float64(len(monthNames))-0.5
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	return r.save(p, opts, ChartTypeBox)
}

// RenderForecast draws the combined observed and forecast series with a red
// dashed vertical line at forecastStart.
func (r *Renderer) RenderForecast(combined *models.TimeSeries, forecastStart time.Time, horizon int) (string, error) {
	if err := checkSeries(combined); err != nil {
		return "", err
	}

	opts := ChartOptions{
		Title:  fmt.Sprintf("%s Prices with %d-Month Forecast", r.config.Commodity, horizon),
		XLabel: constants.LabelDate,
		YLabel: constants.LabelPrice,
		Name:   constants.ChartForecast,
	}

	p := r.newPlot(opts)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true
	p.Legend.Left = true

	line, points, err := plotter.NewLinePoints(toXYs(combined))
	if err != nil {
		return "", r.renderError(opts, err)
	}
	styleSeries(line, points)
	p.Add(line, points)
	p.Legend.Add(constants.LabelPrice, line, points)

	x := float64(forecastStart.Unix())
	marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: p.Y.Min}, {X: x, Y: p.Y.Max}})
	if err != nil {
		return "", r.renderError(opts, err)
	}
	marker.LineStyle.Color = color.RGBA{R: 255, A: 255}
	marker.LineStyle.Width = vg.Points(1.5)
	marker.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(marker)
	p.Legend.Add(constants.LabelForecastStart, marker)

	return r.save(p, opts, ChartTypeForecast)
}

// GroupByMonth collects series values by calendar month, index 0 being January.
func GroupByMonth(series *models.TimeSeries) [12][]float64 {
	var groups [12][]float64
	for _, dp := range series.DataPoints {
		m := int(dp.Timestamp.Month()) - 1
		groups[m] = append(groups[m], dp.Value)
	}
	return groups
}

func (r *Renderer) newPlot(opts ChartOptions) *plot.Plot {
	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())
	return p
}

func (r *Renderer) save(p *plot.Plot, opts ChartOptions, chartType ChartType) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("Failed to create chart directory: %s", r.config.OutputDir))
	}

	path := filepath.Join(r.config.OutputDir, opts.Name+"."+r.config.Format)
	width := vg.Length(r.config.Width) * vg.Inch
	height := vg.Length(r.config.Height) * vg.Inch
	if err := p.Save(width, height, path); err != nil {
		return "", r.renderError(opts, err)
	}

	r.logger.WithFields(logrus.Fields{
		"chart": opts.Name,
		"type":  chartType,
		"path":  path,
	}).Info("Chart rendered")

	return path, nil
}

func (r *Renderer) renderError(opts ChartOptions, err error) error {
	return errors.NewRenderingError(errors.CodeRenderFailed,
		fmt.Sprintf("Failed to render %s chart", opts.Name)).
		WithDetails(err.Error())
}

func styleSeries(line *plotter.Line, points *plotter.Scatter) {
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.GlyphStyle.Radius = vg.Points(2.5)
	points.GlyphStyle.Color = line.LineStyle.Color
}

func toXYs(series *models.TimeSeries) plotter.XYs {
	xys := make(plotter.XYs, series.Len())
	for i, dp := range series.DataPoints {
		xys[i].X = float64(dp.Timestamp.Unix())
		xys[i].Y = dp.Value
	}
	return xys
}

func checkSeries(series *models.TimeSeries) error {
	if series == nil || series.Len() == 0 {
		return errors.NewValidationError(errors.CodeEmptySeries, "cannot chart an empty series").
			WithCause(errors.ErrEmptySeries)
	}
	return nil
}
