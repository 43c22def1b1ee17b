package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/errors"
)

func newTestStorage(t *testing.T, config *FileStorageConfig) *FileStorage {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	fs, err := NewFileStorage(config, logger)
	require.NoError(t, err)
	return fs
}

func TestLoadSortsByDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	content := "Dates,Prices\n12/31/20,10.9\n10/31/20,10.1\n11/30/20,10.3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	series, err := LoadCSV(context.Background(), path, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "prices", series.Name)
	assert.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{10.1, 10.3, 10.9}, series.Values())
	assert.Equal(t, time.Date(2020, 10, 31, 0, 0, 0, 0, time.UTC), series.Start())
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), series.End())
}

func TestReadToleratesHeaderNoise(t *testing.T) {
	fs := newTestStorage(t, nil)
	input := "\ufeff id , dates ,PRICES\n1,2021-01-31,$11.5\n\n2,2021-02-28, 11.75\n"

	series, err := fs.Read(context.Background(), strings.NewReader(input), "gas")
	require.NoError(t, err)
	assert.Equal(t, []float64{11.5, 11.75}, series.Values())
}

func TestReadCustomColumns(t *testing.T) {
	fs := newTestStorage(t, &FileStorageConfig{DateColumn: "month", PriceColumn: "close", Delimiter: ";"})

	series, err := fs.Read(context.Background(), strings.NewReader("month;close\n2021-01-31;3\n"), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
}

func TestReadMissingColumn(t *testing.T) {
	fs := newTestStorage(t, nil)

	_, err := fs.Read(context.Background(), strings.NewReader("Dates,Close\n2021-01-31,1\n"), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "Prices")
}

func TestReadInvalidDate(t *testing.T) {
	fs := newTestStorage(t, nil)

	_, err := fs.Read(context.Background(), strings.NewReader("Dates,Prices\n2021-01-31,1\nsoon,2\n"), "x")
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
	assert.True(t, errors.Is(err, errors.ErrInvalidDate))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 3, appErr.Context["row"])
}

func TestReadInvalidPrice(t *testing.T) {
	fs := newTestStorage(t, nil)

	for _, input := range []string{
		"Dates,Prices\n2021-01-31,abc\n",
		"Dates,Prices\n2021-01-31,\n",
	} {
		_, err := fs.Read(context.Background(), strings.NewReader(input), "x")
		require.Error(t, err, input)
		assert.True(t, errors.IsParseError(err), input)
		assert.True(t, errors.Is(err, errors.ErrInvalidPrice), input)
	}
}

func TestReadRejectsDuplicatesAndEmpty(t *testing.T) {
	fs := newTestStorage(t, nil)

	_, err := fs.Read(context.Background(), strings.NewReader("Dates,Prices\n2021-01-31,1\n1/31/21,2\n"), "x")
	assert.True(t, errors.Is(err, errors.ErrDuplicateDate))

	_, err = fs.Read(context.Background(), strings.NewReader("Dates,Prices\n"), "x")
	assert.True(t, errors.Is(err, errors.ErrEmptySeries))

	_, err = fs.Read(context.Background(), strings.NewReader(""), "x")
	assert.True(t, errors.Is(err, errors.ErrEmptySeries))
}

func TestLoadMissingFile(t *testing.T) {
	fs := newTestStorage(t, nil)

	_, err := fs.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
}

func TestLoadRejectsDirectory(t *testing.T) {
	fs := newTestStorage(t, nil)

	_, err := fs.Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
	assert.Contains(t, err.Error(), "is a directory")
}

func TestReadCancelled(t *testing.T) {
	fs := newTestStorage(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Read(ctx, strings.NewReader("Dates,Prices\n2021-01-31,1\n"), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewFileStorageRejectsBadDelimiter(t *testing.T) {
	_, err := NewFileStorage(&FileStorageConfig{Delimiter: "::"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}
