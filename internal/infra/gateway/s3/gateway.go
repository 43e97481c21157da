// Package s3 keeps the registry as a single CSV object in an S3-compatible bucket (AWS S3
// or MinIO). Every write is a read-modify-write of the whole object, which mirrors the
// spreadsheet-style backends the sync engine is designed around: high latency, tabular
// text, and a cheap version fingerprint (the object ETag).
package s3

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"applicantsync/pkg/domain"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "registry.csv"

// Config holds explicit construction parameters.
type Config struct {
	Region          string
	Bucket          string
	Key             string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Gateway implements domain.Gateway over one CSV object.
type Gateway struct {
	client *s3.Client
	bucket string
	key    string
	schema domain.Schema
	keyIdx int

	// mu serializes read-modify-write cycles issued by this process.
	mu sync.Mutex
}

var _ domain.Gateway = (*Gateway)(nil)

// New creates an S3 CSV gateway from Config.
func New(ctx context.Context, cfg Config, schema domain.Schema) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newGateway(client, cfg.Bucket, cfg.Key, schema), nil
}

func newGateway(client *s3.Client, bucket, key string, schema domain.Schema) *Gateway {
	if key == "" {
		key = DefaultKey
	}
	return &Gateway{
		client: client,
		bucket: bucket,
		key:    key,
		schema: schema,
		keyIdx: schema.Index(schema.KeyColumn),
	}
}

// Save implements domain.Gateway.
func (g *Gateway) Save(ctx context.Context, record domain.Fields, update bool, key domain.Key) error {
	if key == "" {
		return errors.New("save: empty key")
	}
	row := g.schema.RowFromFields(record)
	row[g.keyIdx] = string(key)

	g.mu.Lock()
	defer g.mu.Unlock()
	table, err := g.load(ctx)
	if err != nil {
		return err
	}
	idx := g.indexOf(table, key)
	switch {
	case update && idx < 0:
		return domain.KeyError{Key: key, Err: domain.ErrNotFound}
	case update:
		table.Rows[idx] = row
	case idx >= 0:
		return domain.KeyError{Key: key, Err: domain.ErrDuplicateKey}
	default:
		table.Rows = append(table.Rows, row)
	}
	return g.store(ctx, table)
}

// Delete implements domain.Gateway. Deleting an absent key does not rewrite the object.
func (g *Gateway) Delete(ctx context.Context, key domain.Key) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	table, err := g.load(ctx)
	if err != nil {
		return err
	}
	idx := g.indexOf(table, key)
	if idx < 0 {
		return nil
	}
	table.Rows = slices.Delete(table.Rows, idx, idx+1)
	return g.store(ctx, table)
}

// FetchStateHash implements domain.Gateway using the object ETag. A missing object
// hashes as the empty table.
func (g *Gateway) FetchStateHash(ctx context.Context) (domain.StateHash, error) {
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &g.bucket, Key: &g.key})
	if err != nil {
		if isNotFound(err) {
			return domain.HashTable(g.emptyTable()), nil
		}
		return "", fmt.Errorf("head %s: %w", g.key, err)
	}
	return domain.StateHash(strings.Trim(aws.ToString(out.ETag), `"`)), nil
}

// FetchAll implements domain.Gateway.
func (g *Gateway) FetchAll(ctx context.Context) (domain.Table, error) {
	return g.load(ctx)
}

func (g *Gateway) emptyTable() domain.Table {
	return domain.Table{Header: slices.Clone(g.schema.Columns), Rows: []domain.Row{}}
}

func (g *Gateway) indexOf(t domain.Table, key domain.Key) int {
	return slices.IndexFunc(t.Rows, func(r domain.Row) bool { return domain.Key(r[g.keyIdx]) == key })
}

// load reads the object and projects it onto the schema by column name. Columns the
// object carries beyond the schema are dropped; missing ones read as empty.
func (g *Gateway) load(ctx context.Context) (domain.Table, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &g.bucket, Key: &g.key})
	if err != nil {
		if isNotFound(err) {
			return g.emptyTable(), nil
		}
		return domain.Table{}, fmt.Errorf("get %s: %w", g.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	r := csv.NewReader(out.Body)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return g.emptyTable(), nil
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s header: %w", g.key, err)
	}
	positions := make([]int, len(g.schema.Columns))
	for i, col := range g.schema.Columns {
		positions[i] = slices.Index(header, col)
	}
	if positions[g.keyIdx] < 0 {
		return domain.Table{}, fmt.Errorf("object %s lacks key column %q", g.key, g.schema.KeyColumn)
	}

	table := g.emptyTable()
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("read %s: %w", g.key, err)
		}
		row := make(domain.Row, len(positions))
		for i, p := range positions {
			if p >= 0 && p < len(rec) {
				row[i] = rec[p]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (g *Gateway) store(ctx context.Context, t domain.Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := w.WriteAll(rowsAsRecords(t.Rows)); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &g.bucket,
		Key:         &g.key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", g.key, err)
	}
	return nil
}

func rowsAsRecords(rows []domain.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func isNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
