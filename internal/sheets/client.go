// Package sheets reads ranges from and writes cell notes to a Google
// spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matsen/rollcall/internal/standing"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Scope is the OAuth scope needed to read values and write notes.
const Scope = gsheets.SpreadsheetsScope

// Client is a rate-limited Google Sheets client bound to one spreadsheet.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	limiter       *rate.Limiter
	logger        *zap.Logger

	apiOpts []option.ClientOption
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentialsFile authenticates with a service account JSON key file.
func WithCredentialsFile(path string) ClientOption {
	return func(c *Client) {
		c.apiOpts = append(c.apiOpts, option.WithCredentialsFile(path), option.WithScopes(Scope))
	}
}

// WithEndpoint points the client at a different API endpoint without
// authentication (for testing).
func WithEndpoint(url string, hc *http.Client) ClientOption {
	return func(c *Client) {
		c.apiOpts = append(c.apiOpts, option.WithEndpoint(url), option.WithHTTPClient(hc))
	}
}

// WithLimiter replaces the default request limiter.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the given spreadsheet.
func NewClient(ctx context.Context, spreadsheetID string, opts ...ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}

	c := &Client{
		spreadsheetID: spreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(1), 5),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	svc, err := gsheets.NewService(ctx, c.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	c.svc = svc

	return c, nil
}

// ReadRange returns the values of an A1-notation range as strings.
// An empty range yields no rows and no error.
func (c *Client) ReadRange(ctx context.Context, rangeSpec string) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, classify("read", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}

	c.logger.Debug("read range", zap.String("range", rangeSpec), zap.Int("rows", len(rows)))
	return rows, nil
}

// BatchWrite sets cell notes in a single batchUpdate request.
// Each mutation carries its own sheet ID. An empty batch is rejected with
// standing.ErrNoMutations before any request is made.
func (c *Client) BatchWrite(ctx context.Context, muts []standing.CellMutation) error {
	if len(muts) == 0 {
		return standing.ErrNoMutations
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: make([]*gsheets.Request, len(muts)),
	}
	for i, m := range muts {
		req.Requests[i] = noteRequest(m)
	}

	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify("batch write", err)
	}

	c.logger.Debug("wrote cell notes", zap.Int("mutations", len(muts)))
	return nil
}

// noteRequest builds the updateCells request for one note. Zero indices and
// empty notes are sent explicitly so that sheet 0 and note clearing work.
func noteRequest(m standing.CellMutation) *gsheets.Request {
	return &gsheets.Request{
		UpdateCells: &gsheets.UpdateCellsRequest{
			Range: &gsheets.GridRange{
				SheetId:          m.SheetID,
				StartRowIndex:    int64(m.Row),
				EndRowIndex:      int64(m.Row + 1),
				StartColumnIndex: int64(m.Column),
				EndColumnIndex:   int64(m.Column + 1),
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			Rows: []*gsheets.RowData{{
				Values: []*gsheets.CellData{{
					Note:            m.Note,
					ForceSendFields: []string{"Note"},
				}},
			}},
			Fields: "note",
		},
	}
}
