package loader

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/model"
)

// LoadOffers reads an offer list. JSON and YAML files hold an array of offer
// objects; CSV and XLSX files hold a header row of canonical column names.
func LoadOffers(ctx context.Context, path string) ([]model.Offer, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var offers []model.Offer
	switch format {
	case FormatJSON, FormatYAML:
		err = decodeFile(path, &offers)
	case FormatCSV:
		offers, err = loadOffersCSV(ctx, path)
	case FormatXLSX:
		offers, err = loadOffersXLSX(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("loader: offers loaded",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("offers", len(offers)),
	)
	return offers, nil
}

func loadOffersCSV(ctx context.Context, path string) ([]model.Offer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	if len(rows) == 0 {
		return []model.Offer{}, nil
	}
	return offersFromTable(rows[0], rows[1:])
}

// ReadCSV reads every record from r. Rows may have differing field counts.
func ReadCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, record)
	}
}

func loadOffersXLSX(ctx context.Context, path string) ([]model.Offer, error) {
	rows, err := ReadXLSX(ctx, path, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []model.Offer{}, nil
	}
	return offersFromTable(rows[0], rows[1:])
}

// ReadXLSX returns every row of the named sheet, or the first sheet when
// sheetName is empty.
func ReadXLSX(ctx context.Context, path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: file has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "xlsx: context cancelled")
		}
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
