package constants

// Application constants
const (
	// Application metadata
	AppName        = "pricecast"
	AppDescription = "Monthly commodity price forecasting and estimation"
	AppVersion     = "0.1.0"
	EnvPrefix      = "PRICECAST"

	// Default configuration values
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultConfigName = "pricecast"

	// Input defaults
	DefaultDateColumn  = "Dates"
	DefaultPriceColumn = "Prices"
	DefaultSeriesName  = "Prices"

	// Forecast defaults
	DefaultSeasonalPeriod        = 12
	DefaultForecastHorizon       = 12
	DefaultAROrder               = 1
	DefaultDiffOrder             = 1
	DefaultMAOrder               = 1
	DefaultSeasonalWindow        = 7
	DefaultInnerIterations       = 5
	DefaultRobustInnerIterations = 2
	DefaultRobustIterations      = 15
	DefaultConfidenceLevel       = 0.95
	DefaultLjungBoxLags          = 10

	// Estimation defaults
	PriceDecimalPlaces = 2

	// Chart defaults
	DefaultCommodity   = "Natural Gas"
	DefaultChartDir    = "charts"
	DefaultChartFormat = "png"
	DefaultChartWidth  = 12.0 // inches
	DefaultChartHeight = 6.0  // inches

	// Chart file names, without extension
	ChartRawSeries   = "raw_series"
	ChartSeasonality = "seasonality"
	ChartForecast    = "forecast"

	// Chart labels
	LabelDate          = "Date"
	LabelPrice         = "Price (USD)"
	LabelMonth         = "Month"
	LabelForecastStart = "Forecast Start"
)

// DefaultDateLayouts lists the accepted date layouts in match order. ISO dates are
// tried first so that "2025-06-20" is never read as anything else.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"1/2/06",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
	"02-Jan-2006",
}

// DefaultEstimateDates are the example query dates printed by a full run.
var DefaultEstimateDates = []string{"2023-07-15", "2024-12-01", "2025-06-20"}

// Supported chart and output formats
const (
	FormatPNG  = "png"
	FormatSVG  = "svg"
	FormatPDF  = "pdf"
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)
