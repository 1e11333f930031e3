package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type flakyStore struct{ down atomic.Bool }

func (f *flakyStore) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startBufGRPC(t *testing.T, srv *Server) grpc_health_v1.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	srv.Register(server)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.GracefulStop()
		_ = listener.Close()
	})
	return grpc_health_v1.NewHealthClient(conn)
}

func TestHealthFollowsStore(t *testing.T) {
	store := &flakyStore{}
	srv := New(store, nil)
	client := startBufGRPC(t, srv)
	ctx := context.Background()

	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	require.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(""))

	require.NoError(t, srv.Refresh(ctx))
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(""))
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(ServiceName))

	store.down.Store(true)
	require.Error(t, srv.Refresh(ctx))
	require.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(ServiceName))
}

func TestRunStopsServingOnCancel(t *testing.T) {
	srv := New(&flakyStore{}, nil)
	client := startBufGRPC(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv.Run(ctx, 1<<30)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
