// Package importer loads projects from .xlsx workbooks. Each data row becomes
// one project, created together with its manager assignments.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"project-tracker-api/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/zap"
)

const DefaultMaxErrors = 50

// ErrTooManyErrors stops an import once the row error budget is spent
var ErrTooManyErrors = errors.New("too many errors")

// Sink receives the parsed rows
type Sink interface {
	// Validate checks a row without writing it.
	Validate(dto *models.ProjectDTO) error
	// Import creates the project and assigns the managers with the given employee ids.
	Import(ctx context.Context, dto *models.ProjectDTO, managerEmployeeIDs []string) (*models.ProjectDTO, error)
}

// Options defines the configuration for one import run
type Options struct {
	DryRun    bool
	MaxErrors int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"project_code,omitempty"`
	Message string `json:"message"`
}

// Summary contains the import statistics
type Summary struct {
	Sheet    string     `json:"sheet"`
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
	DryRun   bool       `json:"dry_run"`
}

// Importer reads workbooks according to a Mapping and feeds rows to a Sink
type Importer struct {
	sink    Sink
	mapping *Mapping
	logger  *zap.Logger
}

// New creates an importer; a nil mapping means DefaultMapping.
func New(sink Sink, mapping *Mapping, logger *zap.Logger) (*Importer, error) {
	if mapping == nil {
		m, err := DefaultMapping()
		if err != nil {
			return nil, err
		}
		mapping = m
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{sink: sink, mapping: mapping, logger: logger.Named("importer")}, nil
}

// Import processes an .xlsx workbook. Rows are independent: a failed row is
// recorded in the summary and the next one is tried, until more than
// MaxErrors rows have failed.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts Options) (Summary, error) {
	summary := Summary{DryRun: opts.DryRun}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}

	// xlsx needs random access, so the whole upload is buffered
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("read workbook: %w", err)
	}
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("open workbook: %w", err)
	}

	sheet, err := im.pickSheet(wb)
	if err != nil {
		return summary, err
	}
	summary.Sheet = sheet.Name
	if sheet.MaxRow == 0 {
		return summary, fmt.Errorf("sheet %q is empty", sheet.Name)
	}

	headers, err := readRow(sheet, 0, wb.Date1904)
	if err != nil {
		return summary, fmt.Errorf("read header row: %w", err)
	}
	columns := im.mapping.resolve(headers)
	if missing := missingColumns(columns); len(missing) > 0 {
		return summary, fmt.Errorf("sheet %q has no column for %s", sheet.Name, strings.Join(missing, ", "))
	}

	seen := make(map[string]int)
	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := rowIdx + 1

		cells, err := readRow(sheet, rowIdx, wb.Date1904)
		if err != nil {
			return summary, fmt.Errorf("read row %d: %w", line, err)
		}
		values := make(map[string]string)
		for col, field := range columns {
			if col < len(cells) && cells[col] != "" {
				values[field] = cells[col]
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}
		summary.Rows++

		dto, managers, err := im.buildProject(values)
		if err == nil {
			if first, dup := seen[dto.ProjectCode]; dup {
				err = fmt.Errorf("project_code %q already used on row %d", dto.ProjectCode, first)
			} else {
				seen[dto.ProjectCode] = line
			}
		}
		if err == nil {
			err = im.store(ctx, dto, managers, opts.DryRun)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			im.logger.Debug("row rejected", zap.Int("row", line), zap.Error(err))
			summary.Errors++
			summary.Samples = append(summary.Samples, RowError{Row: line, Code: values["project_code"], Message: err.Error()})
			if summary.Errors > opts.MaxErrors {
				return summary, fmt.Errorf("%w (%d), stopping import at row %d", ErrTooManyErrors, summary.Errors, line)
			}
			continue
		}
		summary.Imported++
	}

	im.logger.Info("workbook imported",
		zap.String("sheet", summary.Sheet),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Bool("dry_run", summary.DryRun))
	return summary, nil
}

func (im *Importer) store(ctx context.Context, dto *models.ProjectDTO, managers []string, dryRun bool) error {
	if dryRun {
		return im.sink.Validate(dto)
	}
	_, err := im.sink.Import(ctx, dto, managers)
	return err
}

func (im *Importer) pickSheet(wb *xlsx.File) (*xlsx.Sheet, error) {
	if len(wb.Sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if im.mapping.Sheet == "" {
		return wb.Sheets[0], nil
	}
	for _, sh := range wb.Sheets {
		if strings.EqualFold(sh.Name, im.mapping.Sheet) {
			return sh, nil
		}
	}
	if len(wb.Sheets) == 1 {
		return wb.Sheets[0], nil
	}
	return nil, fmt.Errorf("workbook has no sheet named %q", im.mapping.Sheet)
}

func missingColumns(columns map[int]string) []string {
	have := make(map[string]bool, len(columns))
	for _, f := range columns {
		have[f] = true
	}
	var missing []string
	for _, f := range requiredColumns {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func readRow(sheet *xlsx.Sheet, idx int, date1904 bool) ([]string, error) {
	row, err := sheet.Row(idx)
	if err != nil {
		return nil, err
	}
	out := make([]string, sheet.MaxCol)
	for col := 0; col < sheet.MaxCol; col++ {
		out[col] = cellText(row.GetCell(col), date1904)
	}
	return out, nil
}

func cellText(c *xlsx.Cell, date1904 bool) string {
	if c == nil {
		return ""
	}
	if c.IsTime() {
		if t, err := c.GetTime(date1904); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	return strings.TrimSpace(c.String())
}

// buildProject converts one row into a project and its manager employee ids
func (im *Importer) buildProject(values map[string]string) (*models.ProjectDTO, []string, error) {
	for field, def := range im.mapping.Defaults {
		if _, ok := values[field]; !ok {
			values[field] = def
		}
	}

	dto := &models.ProjectDTO{}
	var managers []string
	var errs []error
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		raw := values[field]
		if field == "managers" {
			managers = splitList(raw, im.mapping.ListSeparator)
			continue
		}
		if err := setField(dto, field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return dto, managers, nil
}

func setField(dto *models.ProjectDTO, field, raw string) error {
	switch field {
	case "name":
		dto.Name = raw
	case "project_code":
		dto.ProjectCode = raw
	case "description":
		dto.Description = &raw
	case "status":
		dto.Status = models.ProjectStatus(strings.ToUpper(strings.ReplaceAll(raw, " ", "_")))
	case "priority":
		dto.Priority = models.ProjectPriority(strings.ToUpper(raw))
	case "client_name":
		dto.ClientName = &raw
	case "technology_stack":
		dto.TechnologyStack = &raw
	case "start_date":
		return setDate(&dto.StartDate, raw)
	case "end_date":
		return setDate(&dto.EndDate, raw)
	case "estimated_end_date":
		return setDate(&dto.EstimatedEndDate, raw)
	case "budget":
		return setMoney(&dto.Budget, raw)
	case "actual_cost":
		return setMoney(&dto.ActualCost, raw)
	case "team_size":
		return setInt(&dto.TeamSize, raw)
	case "completion_percentage":
		return setInt(&dto.CompletionPercentage, strings.TrimSuffix(raw, "%"))
	}
	return nil
}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
}

func setDate(dst **models.Date, raw string) error {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := models.DateOf(t)
			*dst = &d
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

func setMoney(dst *decimal.NullDecimal, raw string) error {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	*dst = decimal.NewNullDecimal(d)
	return nil
}

func setInt(dst **int, raw string) error {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		// numeric cells can come back as "12.0"
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return fmt.Errorf("invalid integer %q", raw)
		}
		n = int(f)
	}
	*dst = &n
	return nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
