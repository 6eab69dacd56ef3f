package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
)

var archivedAt = time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC)

func sampleOrders() []entity.Order {
	return []entity.Order{{
		ID:          1,
		Items:       []entity.OrderLine{{ItemID: "cc1", ItemName: "Cold Coffee", Quantity: 2, Price: decimal.NewFromInt(149)}},
		OrderType:   entity.OrderTypeTakeaway,
		Status:      entity.StatusBilled,
		TotalAmount: decimal.NewFromInt(298),
		CreatedAt:   archivedAt.Add(-time.Hour),
		UpdatedAt:   archivedAt.Add(-time.Minute),
	}}
}

func TestFileArchiver_WritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	a := NewFileArchiver(dir, "orders")

	location, err := a.Archive(context.Background(), sampleOrders(), archivedAt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location, dir))
	assert.True(t, strings.HasSuffix(location, ".json"))

	data, err := os.ReadFile(location)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1, snap.Count)
	assert.True(t, archivedAt.Equal(snap.ArchivedAt))
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, entity.StatusBilled, snap.Orders[0].Status)
	assert.True(t, decimal.NewFromInt(298).Equal(snap.Orders[0].TotalAmount))
}

func TestFileArchiver_EmptyHistory(t *testing.T) {
	location, err := NewFileArchiver(t.TempDir(), "").Archive(context.Background(), nil, archivedAt)
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"orders": []`)
}

type captureTransport struct {
	mu     sync.Mutex
	method string
	path   string
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = req.Method
	c.path = req.URL.Path
	if req.Body != nil {
		c.body, _ = io.ReadAll(req.Body)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"ETag": {`"etag"`}},
	}, nil
}

func TestS3Archiver_PutsObject(t *testing.T) {
	rt := &captureTransport{}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	location, err := newS3Archiver(client, "history", "orders").Archive(context.Background(), sampleOrders(), archivedAt)
	require.NoError(t, err)
	assert.Equal(t, "s3://history/orders/20261015T223000.000000000Z.json", location)

	assert.Equal(t, http.MethodPut, rt.method)
	assert.Equal(t, "/history/orders/20261015T223000.000000000Z.json", rt.path)
	assert.Contains(t, string(rt.body), `"Cold Coffee"`)
}

func TestNew_Drivers(t *testing.T) {
	logger := zap.NewNop()

	a, err := New(config.Config{Archive: config.Archive{Driver: "noop"}}, logger)
	require.NoError(t, err)
	location, err := a.Archive(context.Background(), sampleOrders(), archivedAt)
	require.NoError(t, err)
	assert.Empty(t, location)

	a, err = New(config.Config{Archive: config.Archive{Driver: "fs", Dir: t.TempDir()}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileArchiver{}, a)

	_, err = New(config.Config{Archive: config.Archive{Driver: "gcs"}}, logger)
	assert.Error(t, err)
}
