package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/storage/interfaces"
	"github.com/inferloop/pricecast/internal/utils/timeutil"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

// FileStorageConfig contains configuration for reading price series from CSV files
type FileStorageConfig struct {
	DateColumn  string   `json:"date_column" yaml:"date_column" mapstructure:"date_column"`
	PriceColumn string   `json:"price_column" yaml:"price_column" mapstructure:"price_column"`
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts" mapstructure:"date_layouts"`
	Delimiter   string   `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter"`
	SeriesName  string   `json:"series_name" yaml:"series_name" mapstructure:"series_name"`
}

// FileStorage loads dated price series from delimited text files
type FileStorage struct {
	config *FileStorageConfig
	logger *logrus.Logger
}

var _ interfaces.SeriesReader = (*FileStorage)(nil)

// DefaultFileStorageConfig returns the configuration for a Dates/Prices CSV file
func DefaultFileStorageConfig() *FileStorageConfig {
	return &FileStorageConfig{
		DateColumn:  constants.DefaultDateColumn,
		PriceColumn: constants.DefaultPriceColumn,
		DateLayouts: constants.DefaultDateLayouts,
		Delimiter:   ",",
	}
}

// NewFileStorage creates a new file storage instance
func NewFileStorage(config *FileStorageConfig, logger *logrus.Logger) (*FileStorage, error) {
	if config == nil {
		config = DefaultFileStorageConfig()
	}

	if config.DateColumn == "" {
		config.DateColumn = constants.DefaultDateColumn
	}

	if config.PriceColumn == "" {
		config.PriceColumn = constants.DefaultPriceColumn
	}

	if len(config.DateLayouts) == 0 {
		config.DateLayouts = constants.DefaultDateLayouts
	}

	if config.Delimiter == "" {
		config.Delimiter = ","
	}

	if len([]rune(config.Delimiter)) != 1 {
		return nil, errors.NewConfigurationError(errors.CodeConfigInvalid, "CSV delimiter must be a single character")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &FileStorage{
		config: config,
		logger: logger,
	}, nil
}

// LoadCSV reads a price series from filePath with the given configuration.
func LoadCSV(ctx context.Context, filePath string, config *FileStorageConfig, logger *logrus.Logger) (*models.TimeSeries, error) {
	fs, err := NewFileStorage(config, logger)
	if err != nil {
		return nil, err
	}
	return fs.Load(ctx, filePath)
}

// Load reads the price series stored at filePath
func (fs *FileStorage) Load(ctx context.Context, filePath string) (*models.TimeSeries, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("Failed to open file: %s", filePath))
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.IsDir() {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("Input path is a directory: %s", filePath)).WithContext("path", filePath)
	}

	name := fs.config.SeriesName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	return fs.Read(ctx, file, name)
}

// Read parses a price series from r. Rows are sorted by date; duplicate dates,
// unparsable dates and unparsable prices are rejected.
func (fs *FileStorage) Read(ctx context.Context, r io.Reader, name string) (*models.TimeSeries, error) {
	reader := csv.NewReader(r)
	reader.Comma = []rune(fs.config.Delimiter)[0]
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValidationError(errors.CodeEmptySeries, "CSV input is empty").
			WithCause(errors.ErrEmptySeries)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.CodeMalformedCSV, "Failed to read CSV header")
	}

	dateCol, err := columnIndex(header, fs.config.DateColumn)
	if err != nil {
		return nil, err
	}
	priceCol, err := columnIndex(header, fs.config.PriceColumn)
	if err != nil {
		return nil, err
	}

	var dataPoints []models.DataPoint
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeCancelled, "Load cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.CodeMalformedCSV,
				fmt.Sprintf("Failed to read CSV row %d", row))
		}
		if isBlank(record) {
			continue
		}
		if len(record) <= dateCol || len(record) <= priceCol {
			return nil, errors.NewParseError(errors.CodeMalformedCSV,
				fmt.Sprintf("row %d has %d fields, expected at least %d", row, len(record), max(dateCol, priceCol)+1))
		}

		timestamp, err := timeutil.ParseDate(record[dateCol], fs.config.DateLayouts)
		if err != nil {
			var appErr *errors.AppError
			if errors.As(err, &appErr) {
				appErr.WithContext("row", row)
			}
			return nil, err
		}

		value, err := parsePrice(record[priceCol])
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeParse, errors.CodeInvalidPrice,
				fmt.Sprintf("unparsable price %q in row %d", record[priceCol], row)).
				WithContext("row", row)
		}

		dataPoints = append(dataPoints, models.DataPoint{
			Timestamp: timestamp,
			Value:     value,
		})
	}

	sort.SliceStable(dataPoints, func(i, j int) bool {
		return dataPoints[i].Timestamp.Before(dataPoints[j].Timestamp)
	})

	series := &models.TimeSeries{
		Name:       name,
		DataPoints: dataPoints,
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	fs.logger.WithFields(logrus.Fields{
		"series":      name,
		"data_points": series.Len(),
		"start":       series.Start().Format(errors.DateLayout),
		"end":         series.End().Format(errors.DateLayout),
	}).Info("Loaded price series")

	return series, nil
}

func columnIndex(header []string, column string) (int, error) {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.EqualFold(h, column) {
			return i, nil
		}
	}
	return -1, errors.NewValidationError(errors.CodeMissingColumn, fmt.Sprintf("column %q not found", column)).
		WithDetails(fmt.Sprintf("header: %s", strings.Join(header, ","))).
		WithCause(errors.ErrMissingColumn)
}

func parsePrice(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "$")
	if value == "" {
		return 0, errors.ErrInvalidPrice
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrInvalidPrice, err)
	}
	return f, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
