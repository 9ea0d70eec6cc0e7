package dataset

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/db"
	"github.com/sells-group/choropleth/internal/fetcher"
)

// Loader reads statistic and geometry sources. Pool is only needed for
// postgres and postgis sources and for imports.
type Loader struct {
	Fetcher fetcher.Fetcher
	Pool    db.Pool
	Schema  string
	TempDir string
}

// NewLoader builds a Loader from configuration. pool may be nil.
func NewLoader(cfg *config.Config, pool db.Pool) *Loader {
	return &Loader{
		Fetcher: fetcher.NewRouter(
			fetcher.HTTPOptions{
				UserAgent:  cfg.Fetch.UserAgent,
				Timeout:    cfg.Fetch.Timeout(),
				MaxRetries: cfg.Fetch.MaxRetries,
			},
			fetcher.FTPOptions{Timeout: cfg.Fetch.Timeout()},
		),
		Pool:    pool,
		Schema:  cfg.Store.Schema,
		TempDir: cfg.Fetch.TempDir,
	}
}

// LoadAll fetches statistics and geometries concurrently. Either failure
// cancels the other.
func (l *Loader) LoadAll(ctx context.Context, statsSrc config.StatsConfig, geomSrc config.GeometryConfig) ([]choropleth.StatRecord, []choropleth.GeometryRecord, error) {
	var (
		stats []choropleth.StatRecord
		geoms []choropleth.GeometryRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = l.LoadStats(gctx, statsSrc)
		return err
	})
	g.Go(func() error {
		var err error
		geoms, err = l.LoadGeometries(gctx, geomSrc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return stats, geoms, nil
}

// ImportStats loads the statistic source and replaces the contents of the
// Postgres statistics table with it. Duplicate keys keep their first row.
func (l *Loader) ImportStats(ctx context.Context, src config.StatsConfig) (int64, error) {
	if strings.EqualFold(src.Format, "postgres") {
		return 0, eris.New("dataset: cannot import from the postgres table being replaced")
	}
	if l.Pool == nil {
		return 0, eris.New("dataset: import needs a database pool")
	}

	records, err := l.LoadStats(ctx, src)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(records))
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.RegionKey]; dup {
			zap.L().Warn("dataset: duplicate key not imported", zap.String("region_key", r.RegionKey))
			continue
		}
		seen[r.RegionKey] = struct{}{}
		rows = append(rows, []any{r.RegionKey, r.Value, r.DisplayName, r.GroupName})
	}

	n, err := db.ReplaceRows(ctx, l.Pool, l.Schema, db.StatsTable, db.StatsColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: import stats")
	}
	zap.L().Info("statistics imported", zap.String("schema", l.Schema), zap.Int64("rows", n))
	return n, nil
}

// ImportGeometries loads the geometry source and replaces the contents of the
// PostGIS geometry table with it. Non-polygonal geometries are skipped.
func (l *Loader) ImportGeometries(ctx context.Context, src config.GeometryConfig) (int64, error) {
	if strings.EqualFold(src.Format, "postgis") {
		return 0, eris.New("dataset: cannot import from the postgis table being replaced")
	}
	if l.Pool == nil {
		return 0, eris.New("dataset: import needs a database pool")
	}

	records, err := l.LoadGeometries(ctx, src)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(records))
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.RegionKey]; dup {
			continue
		}
		mp, ok := toMultiPolygon(r.Geometry)
		if !ok {
			zap.L().Debug("dataset: skipping non-polygonal geometry", zap.String("region_key", r.RegionKey))
			continue
		}
		data, err := ewkb.Marshal(mp, ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "dataset: encode geometry for %s", r.RegionKey)
		}
		seen[r.RegionKey] = struct{}{}
		rows = append(rows, []any{r.RegionKey, data})
	}

	n, err := db.ReplaceRows(ctx, l.Pool, l.Schema, db.GeometryTable, db.GeometryColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: import geometries")
	}
	zap.L().Info("geometries imported", zap.String("schema", l.Schema), zap.Int64("rows", n))
	return n, nil
}

func isLocal(rawURL string) bool {
	return !strings.Contains(rawURL, "://") || strings.HasPrefix(strings.ToLower(rawURL), "file://")
}

func (l *Loader) tempDir() string {
	if l.TempDir != "" {
		return l.TempDir
	}
	return os.TempDir()
}

// workDir creates a private directory for one load's downloads and
// extracted bundles, so concurrent loads never share files. cleanup removes
// it and everything in it.
func (l *Loader) workDir() (dir string, cleanup func(), err error) {
	base := l.tempDir()
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", nil, eris.Wrap(err, "dataset: create temp dir")
	}
	dir, err = os.MkdirTemp(base, "choropleth-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "dataset: create work dir")
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			zap.L().Warn("dataset: remove work dir", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

// localCopy returns a filesystem path for rawURL. Remote files are
// downloaded into dir, which should come from workDir.
func (l *Loader) localCopy(ctx context.Context, rawURL, dir string) (string, error) {
	if isLocal(rawURL) {
		return fetcher.LocalPath(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("dataset: no file name in url %s", rawURL)
	}

	dest := filepath.Join(dir, name)
	if _, err := l.Fetcher.DownloadToFile(ctx, rawURL, dest); err != nil {
		return "", eris.Wrapf(err, "dataset: download %s", rawURL)
	}
	return dest, nil
}
