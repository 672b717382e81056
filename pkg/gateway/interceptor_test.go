package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	pingProcedure  = "/fieldapp.v1.AuthService/Ping"
	loginProcedure = "/fieldapp.v1.AuthService/Login"
)

func newConnectBackend(t *testing.T) *httptest.Server {
	t.Helper()
	check := func(
		ctx context.Context,
		req *connect.Request[emptypb.Empty],
	) (*connect.Response[emptypb.Empty], error) {
		if req.Header().Get("Authorization") != "Bearer good" {
			return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
		}
		return connect.NewResponse(&emptypb.Empty{}), nil
	}
	mux := http.NewServeMux()
	mux.Handle(pingProcedure, connect.NewUnaryHandler(pingProcedure, check))
	mux.Handle(loginProcedure, connect.NewUnaryHandler(loginProcedure, check))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthInterceptor(t *testing.T) {
	srv := newConnectBackend(t)
	g := New(WithLoginProcedure(loginProcedure))
	res := &staticResolver{token: "good"}
	g.UseTokenResolver(res)
	var calls atomic.Int32
	g.OnUnauthorized(func(ctx context.Context) { calls.Add(1) })

	otelInterceptor, err := otelconnect.NewInterceptor()
	require.NoError(t, err)
	interceptors := connect.WithInterceptors(otelInterceptor, g.NewAuthInterceptor())
	ping := connect.NewClient[emptypb.Empty, emptypb.Empty](
		srv.Client(), srv.URL+pingProcedure, interceptors)
	login := connect.NewClient[emptypb.Empty, emptypb.Empty](
		srv.Client(), srv.URL+loginProcedure, interceptors)

	_, err = ping.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())

	res.token = "stale"
	_, err = ping.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())

	_, err = login.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load(), "login procedure must not report")
}

func TestGatewayClientLoginProcedure(t *testing.T) {
	srv := newConnectBackend(t)
	g := New(WithLoginProcedure(loginProcedure))
	g.UseTokenResolver(&staticResolver{token: "stale"})
	var calls atomic.Int32
	g.OnUnauthorized(func(ctx context.Context) { calls.Add(1) })

	// no interceptor, the transport alone sees the 401
	login := connect.NewClient[emptypb.Empty, emptypb.Empty](
		g.Client(), srv.URL+loginProcedure)
	ping := connect.NewClient[emptypb.Empty, emptypb.Empty](
		g.Client(), srv.URL+pingProcedure)

	_, err := login.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.Equal(t, int32(0), calls.Load())

	_, err = ping.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}
