package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/ingest"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

const (
	ExtractionServiceName = "lifemaxxing.extract.v1.Extraction"
	extractMethod         = "/" + ExtractionServiceName + "/Extract"
)

// ExtractionServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct messages shaped like the HTTP /api/extract bodies
// plus a "domain" key.
type ExtractionServer interface {
	Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type extractionServer struct {
	ex Extractor
}

func (s *extractionServer) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	str := func(k string) string { return fields[k].GetStringValue() }

	domain, ok := constants.ParseDomain(str("domain"))
	if !ok {
		return nil, common.GRPCStatus(fmt.Errorf("%w: %q", common.ErrUnknownDomain, str("domain")))
	}
	ref := str("fileUrl")
	if ref == "" {
		return nil, common.InvalidArgumentError("fileUrl is required")
	}
	if !ingest.IsNetworkRef(ref) {
		return nil, common.InvalidArgumentError("fileUrl must be an http(s) or data URL")
	}
	req := pipeline.ExtractionRequest{
		Domain:    domain,
		SourceRef: ref,
		RawKind:   constants.RawKind(str("rawKind")),
	}
	if req.RawKind != "" && !req.RawKind.Valid() {
		return nil, common.InvalidArgumentErrorf("unknown rawKind %q", req.RawKind)
	}

	var (
		out extraction.Outcome
		err error
	)
	if fields["persist"].GetBoolValue() {
		out, err = s.ex.ExtractAndStore(ctx, req, str("ownerId"))
	} else {
		out.Result, err = s.ex.Extract(ctx, req)
	}
	if errors.Is(err, extraction.ErrPersist) {
		return nil, persistFailureStatus(out, err)
	}
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return outcomeStruct(out)
}

// persistFailureStatus reports a storage failure as Internal and attaches the
// extracted outcome as a status detail so the record is not lost.
func persistFailureStatus(out extraction.Outcome, err error) error {
	st := status.New(codes.Internal, err.Error())
	body, serr := outcomeStruct(out)
	if serr != nil {
		return st.Err()
	}
	if withBody, derr := st.WithDetails(body); derr == nil {
		st = withBody
	}
	return st.Err()
}

// OutcomeFromError returns the extraction outcome carried by an error from
// Extract, which is present when extraction succeeded but storage failed.
func OutcomeFromError(err error) (*structpb.Struct, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if body, ok := d.(*structpb.Struct); ok {
			return body, true
		}
	}
	return nil, false
}

// outcomeStruct converts an outcome to a Struct through its JSON form so
// field names match the HTTP API.
func outcomeStruct(out extraction.Outcome) (*structpb.Struct, error) {
	resp := extractResponse{
		Domain:   string(out.Result.Domain),
		FellBack: out.Result.FellBack,
		JobID:    out.JobID,
		Stored:   out.Stored,
	}
	if out.Result.Cause != nil {
		resp.Cause = out.Result.Cause.Error()
	}
	rec, err := json.Marshal(out.Result.Record)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	resp.Record = rec
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.GRPCStatus(err)
	}
	return structpb.NewStruct(m)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var extractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifemaxxing/extract/v1/extraction.proto",
}

// loggingInterceptor logs one line per unary call.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Error("grpc.request", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}

// NewGRPCServer registers the extraction, health and reflection services.
func NewGRPCServer(ex Extractor, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtractionServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	s.RegisterService(&extractionServiceDesc, &extractionServer{ex: ex})
	return s
}

// ExtractionClient calls the Extraction service.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, extractMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
