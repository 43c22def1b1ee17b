package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/utils/timeutil"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/models"
)

// Config describes the synthetic price history to generate
type Config struct {
	Start     time.Time
	Months    int
	Base      float64 // price of the first month
	Trend     float64 // price change per month
	Amplitude float64 // half the winter/summer swing
	PeakMonth time.Month
	Noise     float64 // standard deviation of the monthly shock
	Seed      int64
}

// Generator writes month-end price histories in the Dates,Prices layout
type Generator struct {
	config *Config
	logger *logrus.Logger
	rand   *rand.Rand
}

func main() {
	var (
		output  = flag.String("output", "Nat_Gas.csv", "Output file")
		start   = flag.String("start", "2020-10-31", "First month end (YYYY-MM-DD)")
		months  = flag.Int("months", 48, "Number of monthly prices")
		base    = flag.Float64("base", 10, "Price of the first month")
		trend   = flag.Float64("trend", 0.05, "Price change per month")
		amp     = flag.Float64("amplitude", 0.8, "Seasonal amplitude")
		noise   = flag.Float64("noise", 0.15, "Standard deviation of the monthly shock")
		seed    = flag.Int64("seed", 1, "Random seed")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}

	config := getDefaultConfig()
	config.Start = first
	config.Months = *months
	config.Base = *base
	config.Trend = *trend
	config.Amplitude = *amp
	config.Noise = *noise
	config.Seed = *seed

	generator := NewGenerator(config, logger)

	series, err := generator.Generate(context.Background())
	if err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create file: %v", err)
	}
	defer file.Close()

	if err := WriteCSV(file, series); err != nil {
		log.Fatalf("Failed to save data: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"months":      series.Len(),
		"from":        series.Start().Format(time.DateOnly),
		"to":          series.End().Format(time.DateOnly),
		"output_file": *output,
	}).Info("Test data generation completed")
}

func NewGenerator(config *Config, logger *logrus.Logger) *Generator {
	if config == nil {
		config = getDefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds Months month-end prices starting at the month end of Start
func (g *Generator) Generate(ctx context.Context) (*models.TimeSeries, error) {
	if g.config.Months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", g.config.Months)
	}

	timestamps := make([]time.Time, g.config.Months)
	values := make([]float64, g.config.Months)

	month := timeutil.MonthEnd(g.config.Start)
	for i := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timestamps[i] = month
		values[i] = g.price(i, month.Month())
		month = timeutil.MonthEnd(month.AddDate(0, 0, 1))
	}

	g.logger.WithField("months", len(values)).Debug("Generated price history")
	return models.NewTimeSeries("synthetic", timestamps, values)
}

func (g *Generator) price(i int, month time.Month) float64 {
	phase := 2 * math.Pi * float64(month-g.config.PeakMonth) / 12
	value := g.config.Base + g.config.Trend*float64(i) + g.config.Amplitude*math.Cos(phase)
	if g.config.Noise > 0 {
		value += g.rand.NormFloat64() * g.config.Noise
	}
	return math.Max(value, 0.01)
}

// WriteCSV writes series as Dates,Prices rows with m/d/yy dates
func WriteCSV(w io.Writer, series *models.TimeSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{constants.DefaultDateColumn, constants.DefaultPriceColumn}); err != nil {
		return err
	}
	for _, p := range series.DataPoints {
		row := []string{
			p.Timestamp.Format("1/2/06"),
			decimal.NewFromFloat(p.Value).StringFixed(constants.PriceDecimalPlaces),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func getDefaultConfig() *Config {
	return &Config{
		Start:     time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC),
		Months:    48,
		Base:      10,
		Trend:     0.05,
		Amplitude: 0.8,
		PeakMonth: time.January,
		Noise:     0.15,
		Seed:      1,
	}
}
