package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/chrisdamba/messforecast/internal/cloudwriter"
	"github.com/chrisdamba/messforecast/internal/models"
)

// ingredientRow is one ingredient of one snapshot.
type ingredientRow struct {
	SnapshotID        string `parquet:"name=snapshot_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp         int64  `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Ingredient        string `parquet:"name=ingredient, type=BYTE_ARRAY, convertedtype=UTF8"`
	Unit              string `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	EstimatedQuantity int64  `parquet:"name=estimated_quantity, type=INT64"`
}

// ParquetSink writes each snapshot as its own parquet file, locally or to a cloud bucket,
// under <folder>/snapshot_id=<id>/data.parquet.
type ParquetSink struct {
	mu                 sync.Mutex
	basePath           string
	folder             string
	cloudWriterFactory cloudwriter.CloudWriterFactory
	cloudBucketName    string
}

func NewParquetSink(basePath, folder string) *ParquetSink {
	return &ParquetSink{basePath: basePath, folder: folder}
}

// NewCloudParquetSink uploads snapshot files through factory instead of the local filesystem.
func NewCloudParquetSink(factory cloudwriter.CloudWriterFactory, bucket, folder string) *ParquetSink {
	return &ParquetSink{folder: folder, cloudWriterFactory: factory, cloudBucketName: bucket}
}

func (p *ParquetSink) Name() string {
	return models.SinkParquet
}

func (p *ParquetSink) objectPath(id string) string {
	return filepath.Join(p.folder, "snapshot_id="+id, "data.parquet")
}

func (p *ParquetSink) Append(ctx context.Context, snapshot models.ForecastSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fw, err := p.createFile(ctx, snapshot.ID)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, new(ingredientRow), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}

	names := make([]string, 0, len(snapshot.Forecast))
	for name := range snapshot.Forecast {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := snapshot.Timestamp.UTC().UnixMilli()
	for _, name := range names {
		f := snapshot.Forecast[name]
		row := ingredientRow{
			SnapshotID:        snapshot.ID,
			Timestamp:         ts,
			Ingredient:        name,
			Unit:              f.Unit,
			EstimatedQuantity: int64(f.EstimatedQuantity),
		}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return fw.Close()
}

func (p *ParquetSink) createFile(ctx context.Context, id string) (source.ParquetFile, error) {
	if p.cloudWriterFactory != nil {
		cw, err := p.cloudWriterFactory.NewWriter(ctx, p.cloudBucketName, p.objectPath(id))
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return newCloudParquetFile(cw), nil
	}

	path := filepath.Join(p.basePath, p.objectPath(id))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, nil
}

// cloudParquetFile adapts a write-only CloudWriter to source.ParquetFile.
type cloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func newCloudParquetFile(cw cloudwriter.CloudWriter) *cloudParquetFile {
	return &cloudParquetFile{cloudWriter: cw}
}

func (c *cloudParquetFile) Open(string) (source.ParquetFile, error)   { return c, nil }
func (c *cloudParquetFile) Create(string) (source.ParquetFile, error) { return c, nil }

func (c *cloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *cloudParquetFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *cloudParquetFile) Write(b []byte) (int, error) {
	n, err := c.cloudWriter.Write(b)
	c.offset += int64(n)
	return n, err
}

func (c *cloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}
