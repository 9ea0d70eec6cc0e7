package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/fetcher"
)

// LoadStats reads the statistic source described by src.
func (l *Loader) LoadStats(ctx context.Context, src config.StatsConfig) ([]choropleth.StatRecord, error) {
	log := zap.L().With(
		zap.String("component", "dataset.stats"),
		zap.String("format", src.Format),
		zap.String("url", src.URL),
	)

	var (
		rows []map[string]any
		err  error
	)
	switch strings.ToLower(src.Format) {
	case "json":
		rows, err = l.statsJSON(ctx, src)
	case "csv":
		rows, err = l.statsCSV(ctx, src)
	case "xlsx":
		rows, err = l.statsXLSX(ctx, src)
	case "sqlite":
		rows, err = l.statsSQLite(ctx, src)
	case "postgres":
		records, pgErr := l.statsPostgres(ctx, src)
		if pgErr != nil {
			return nil, pgErr
		}
		log.Info("statistics loaded", zap.Int("records", len(records)))
		return records, nil
	default:
		return nil, eris.Errorf("dataset: unsupported stats format %q", src.Format)
	}
	if err != nil {
		return nil, err
	}

	records, skipped, err := StatRecords(rows, src)
	if err != nil {
		return nil, err
	}
	log.Info("statistics loaded",
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped),
	)
	return records, nil
}

// StatRecords maps generic rows onto statistic records using the configured
// field names. Rows without a key or value are skipped and counted; a value
// that cannot be parsed is an error.
func StatRecords(rows []map[string]any, src config.StatsConfig) ([]choropleth.StatRecord, int, error) {
	out := make([]choropleth.StatRecord, 0, len(rows))
	var skipped int
	for i, row := range rows {
		key, err := NormalizeKey(field(row, src.KeyField), src.KeyWidth)
		if err != nil {
			skipped++
			zap.L().Debug("dataset: skipping row without usable key", zap.Int("row", i), zap.Error(err))
			continue
		}
		value, ok, err := ParseValue(field(row, src.ValueField))
		if err != nil {
			return nil, skipped, eris.Wrapf(err, "dataset: row %d (%s)", i, key)
		}
		if !ok {
			skipped++
			zap.L().Debug("dataset: skipping row without value", zap.String("region_key", key))
			continue
		}
		rec := choropleth.StatRecord{RegionKey: key, Value: value}
		if src.NameField != "" {
			rec.DisplayName = text(field(row, src.NameField))
		}
		if src.GroupField != "" {
			rec.GroupName = text(field(row, src.GroupField))
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// field looks name up exactly, then case-insensitively.
func field(row map[string]any, name string) any {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func stringRows(rows []map[string]string) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

func (l *Loader) statsJSON(ctx context.Context, src config.StatsConfig) ([]map[string]any, error) {
	body, err := l.Fetcher.Download(ctx, src.URL)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: download stats")
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.CollectJSONArray[map[string]any](ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: decode stats json")
	}
	return rows, nil
}

func (l *Loader) statsCSV(ctx context.Context, src config.StatsConfig) ([]map[string]any, error) {
	body, err := l.Fetcher.Download(ctx, src.URL)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: download stats")
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.ReadCSV(body, fetcher.CSVOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: decode stats csv")
	}
	return stringRows(rows), nil
}

func (l *Loader) statsXLSX(ctx context.Context, src config.StatsConfig) ([]map[string]any, error) {
	work, cleanup, err := l.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	path, err := l.localCopy(ctx, src.URL, work)
	if err != nil {
		return nil, err
	}
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: src.Sheet})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: decode stats xlsx")
	}
	return stringRows(fetcher.HeaderMaps(rows)), nil
}

func (l *Loader) statsSQLite(ctx context.Context, src config.StatsConfig) ([]map[string]any, error) {
	work, cleanup, err := l.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	path, err := l.localCopy(ctx, src.URL, work)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open sqlite")
	}
	defer sqlDB.Close() //nolint:errcheck

	cols := []string{src.KeyField, src.ValueField}
	for _, c := range []string{src.NameField, src.GroupField} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), pgx.Identifier{src.Table}.Sanitize())

	rows, err := sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: query sqlite table %s", src.Table)
	}
	defer rows.Close() //nolint:errcheck

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "dataset: scan sqlite row")
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: iterate sqlite rows")
	}
	return out, nil
}

func (l *Loader) statsPostgres(ctx context.Context, src config.StatsConfig) ([]choropleth.StatRecord, error) {
	if l.Pool == nil {
		return nil, eris.New("dataset: postgres stats source needs a database pool")
	}

	query := fmt.Sprintf(`SELECT region_key, value, COALESCE(display_name, ''), COALESCE(group_name, '')
		FROM %s ORDER BY region_key`, pgx.Identifier{l.Schema, src.Table}.Sanitize())

	rows, err := l.Pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: query region stats")
	}
	defer rows.Close()

	var out []choropleth.StatRecord
	for rows.Next() {
		var (
			raw string
			rec choropleth.StatRecord
		)
		if err := rows.Scan(&raw, &rec.Value, &rec.DisplayName, &rec.GroupName); err != nil {
			return nil, eris.Wrap(err, "dataset: scan region stat")
		}
		if rec.RegionKey, err = NormalizeKey(raw, src.KeyWidth); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: iterate region stats")
	}
	return out, nil
}
