package gateway

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

type authInterceptor struct {
	g *Gateway
}

// NewAuthInterceptor returns a client interceptor for connect RPC clients.
// It stamps the same headers as the http client and reports
// CodeUnauthenticated errors like a 401 response, except for the
// configured login procedure.
func (g *Gateway) NewAuthInterceptor() connect.Interceptor {
	return &authInterceptor{g: g}
}

//nolint:whitespace // can't make both editor and linter happy
func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			i.g.decorate(ctx, req.Header())
		}
		res, err := next(ctx, req)
		if err != nil && req.Spec().IsClient {
			i.check(ctx, req.Spec().Procedure, err)
		}
		return res, err
	})
}

//nolint:whitespace // editor/linter issue
func (i *authInterceptor) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return connect.StreamingClientFunc(func(
		ctx context.Context,
		spec connect.Spec,
	) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.g.decorate(ctx, conn.RequestHeader())
		return &streamingClientConn{StreamingClientConn: conn, i: i, ctx: ctx}
	})
}

//nolint:whitespace // editor/linter issue
func (i *authInterceptor) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}

func (i *authInterceptor) check(ctx context.Context, procedure string, err error) {
	var cErr *connect.Error
	if !errors.As(err, &cErr) || cErr.Code() != connect.CodeUnauthenticated {
		return
	}
	if i.g.loginProcedure != "" && procedurePath(procedure) == i.g.loginProcedure {
		return
	}
	i.g.notifyUnauthorized(ctx, procedure)
}

type streamingClientConn struct {
	connect.StreamingClientConn
	i   *authInterceptor
	ctx context.Context
}

func (c *streamingClientConn) Receive(msg any) error {
	err := c.StreamingClientConn.Receive(msg)
	if err != nil {
		c.i.check(c.ctx, c.Spec().Procedure, err)
	}
	return err
}
