package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
)

func dialBufconn(t *testing.T, ex Extractor) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ex, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func structOf(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCExtract(t *testing.T) {
	ex := &fakeExtractor{}
	client := NewExtractionClient(dialBufconn(t, ex))

	out, err := client.Extract(context.Background(), structOf(t, map[string]any{
		"domain":  "looksmaxxer/face",
		"fileUrl": "https://cdn.example.com/f.jpg",
	}))
	require.NoError(t, err)
	fields := out.AsMap()
	assert.Equal(t, "face", fields["domain"])
	assert.Equal(t, 7.0, fields["record"].(map[string]any)["rating"])
	assert.Equal(t, constants.DomainFace, ex.last().Domain)
	assert.Zero(t, ex.stored)
}

func TestGRPCExtract_Persist(t *testing.T) {
	ex := &fakeExtractor{}
	client := NewExtractionClient(dialBufconn(t, ex))

	out, err := client.Extract(context.Background(), structOf(t, map[string]any{
		"domain":  "face",
		"fileUrl": "https://cdn.example.com/x.jpg",
		"persist": true,
		"ownerId": "u1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "job-1", out.AsMap()["jobId"])
	assert.Equal(t, 1, ex.stored)
}

func TestGRPCExtract_PersistFailureCarriesRecord(t *testing.T) {
	ex := &fakeExtractor{storeErr: errors.New("disk full")}
	client := NewExtractionClient(dialBufconn(t, ex))

	_, err := client.Extract(context.Background(), structOf(t, map[string]any{
		"domain":  "face",
		"fileUrl": "https://cdn.example.com/x.jpg",
		"persist": true,
	}))
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "disk full")

	body, ok := OutcomeFromError(err)
	require.True(t, ok)
	fields := body.AsMap()
	assert.Equal(t, "job-1", fields["jobId"])
	assert.Equal(t, 7.0, fields["record"].(map[string]any)["rating"])

	_, ok = OutcomeFromError(common.InvalidArgumentError("nope"))
	assert.False(t, ok)
}

func TestGRPCExtract_StatusCodes(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		err  error
		code codes.Code
	}{
		{"unknown domain", map[string]any{"domain": "tarot", "fileUrl": "https://cdn.example.com/x.jpg"}, nil, codes.InvalidArgument},
		{"missing url", map[string]any{"domain": "face"}, nil, codes.InvalidArgument},
		{"local path", map[string]any{"domain": "study-document", "fileUrl": "/etc/passwd"}, nil, codes.InvalidArgument},
		{"file url", map[string]any{"domain": "face", "fileUrl": "file:///etc/shadow", "rawKind": "image"}, nil, codes.InvalidArgument},
		{"bad raw kind", map[string]any{"domain": "face", "fileUrl": "https://cdn.example.com/x.jpg", "rawKind": "audio"}, nil, codes.InvalidArgument},
		{"fetch failure", map[string]any{"domain": "face", "fileUrl": "https://cdn.example.com/x.jpg"},
			common.NewStageError(common.StageIngest, common.ErrFetchFailure, errors.New("404")), codes.Unavailable},
		{"extraction failure", map[string]any{"domain": "resume", "fileUrl": "https://cdn.example.com/x.jpg"},
			common.NewStageError(common.StageNormalize, common.ErrExtractionFailure, errors.New("bad")), codes.FailedPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := NewExtractionClient(dialBufconn(t, &fakeExtractor{err: tc.err}))
			_, err := client.Extract(context.Background(), structOf(t, tc.in))
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t, &fakeExtractor{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ExtractionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
