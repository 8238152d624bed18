package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// DefaultWorksheet is the tab the task export writes to.
const DefaultWorksheet = "Otter_Tasks"

// SheetsOptions configures a Google Sheets provider.
type SheetsOptions struct {
	SpreadsheetID   string
	Worksheet       string
	CredentialsFile string
	APIKey          string
}

// Sheets implements Provider over the Google Sheets v4 API.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	logger        *slog.Logger
}

// NewSheets creates a Sheets provider. Extra client options are appended
// after the ones derived from opts.
func NewSheets(ctx context.Context, opts SheetsOptions, logger *slog.Logger, extra ...option.ClientOption) (*Sheets, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("source: spreadsheet id is required")
	}
	if opts.Worksheet == "" {
		opts.Worksheet = DefaultWorksheet
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		)
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, extra...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("source: sheets client: %w", err)
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		worksheet:     opts.Worksheet,
		logger:        logger,
	}, nil
}

// Name implements Provider.
func (s *Sheets) Name() string {
	return "sheets:" + s.spreadsheetID + "/" + s.worksheet
}

// Fetch reads every value of the configured worksheet. When that worksheet
// cannot be read, the first sheet of the spreadsheet is used instead.
func (s *Sheets) Fetch(ctx context.Context) ([][]string, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, a1Sheet(s.worksheet)).Context(ctx).Do()
	if err != nil {
		s.logger.Warn("sheets: worksheet read failed, falling back to first sheet",
			slog.String("worksheet", s.worksheet),
			slog.String("error", err.Error()))

		title, ferr := s.firstSheet(ctx)
		if ferr != nil {
			return nil, fmt.Errorf("source: read worksheet %q: %w", s.worksheet, err)
		}
		vr, err = s.svc.Spreadsheets.Values.Get(s.spreadsheetID, a1Sheet(title)).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("source: read worksheet %q: %w", title, err)
		}
	}

	records := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		rec := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rec[j] = fmt.Sprint(cell)
			}
		}
		records[i] = rec
	}
	return records, nil
}

func (s *Sheets) firstSheet(ctx context.Context) (string, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("source: get spreadsheet: %w", err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return "", fmt.Errorf("source: spreadsheet %s has no sheets", s.spreadsheetID)
	}
	return ss.Sheets[0].Properties.Title, nil
}

// a1Sheet quotes a sheet title for use as an A1 range.
func a1Sheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
