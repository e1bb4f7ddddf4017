package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334

	// DefaultMaxMessageSize bounds gRPC messages in both directions.
	DefaultMaxMessageSize = 16 * 1024 * 1024
)

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	// URL in "host:port" form; the port defaults to 6334.
	URL            string
	APIKey         string
	UseTLS         bool
	MaxMessageSize int
}

// QdrantStore implements Store using Qdrant
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant client. No connection is made until
// the first call.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(cfg.URL)
	if err != nil {
		host = cfg.URL
		portStr = strconv.Itoa(DefaultPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	qcfg := &qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ping runs a Qdrant health check.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// DocumentSimilarity queries collection for the nearest point whose
// document_id payload equals documentID.
func (s *QdrantStore) DocumentSimilarity(ctx context.Context, collection string, vector []float32, documentID string) (float32, bool, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(DocumentIDField, documentID),
			},
		},
		Limit: qdrant.PtrOf(uint64(1)),
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to query document %q: %w", documentID, err)
	}
	if len(points) == 0 {
		return 0, false, nil
	}
	return points[0].Score, true, nil
}

var _ Store = (*QdrantStore)(nil)
