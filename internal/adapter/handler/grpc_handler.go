package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	adminServiceName = "storefront.admin.v1.OrderAdmin"
	apiKeyHeader     = "x-api-key"
)

// JSONCodec carries the admin messages as JSON, so the service needs no generated code.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

type GetOrderRequest struct {
	ID string `json:"id"`
}

type ListOrdersRequest struct {
	Search  string `json:"search"`
	Status  string `json:"status"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

type ListOrdersResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	LastPage int             `json:"last_page"`
}

type UpdateOrderStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type OrderAdminServer interface {
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error)
}

type GRPCHandler struct {
	orders OrderUseCase
	log    *zap.Logger
}

func NewGRPCHandler(orders OrderUseCase, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, log: log}
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	order, err := h.orders.Get(ctx, req.ID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := newOrderResponse(*order)
	return &resp, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	page, err := h.orders.List(ctx, domain.OrderFilter{
		Search:  req.Search,
		Status:  domain.OrderStatus(req.Status),
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &ListOrdersResponse{
		Orders:   newOrderResponses(page.Orders),
		Total:    page.Total,
		Page:     page.Page,
		PerPage:  page.PerPage,
		LastPage: page.LastPage(),
	}, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	order, err := h.orders.UpdateStatus(ctx, req.ID, req.Status)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := newOrderResponse(*order)
	return &resp, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrCheckoutInProgress):
		return status.Error(codes.Aborted, err.Error())
	}
	h.log.Error("admin rpc failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

// APIKeyInterceptor rejects calls without the configured x-api-key metadata.
func APIKeyInterceptor(key string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(apiKeyHeader)
		if key == "" || len(values) == 0 || subtle.ConstantTimeCompare([]byte(values[0]), []byte(key)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}

func RegisterOrderAdminServer(s grpc.ServiceRegistrar, srv OrderAdminServer) {
	s.RegisterService(&orderAdminServiceDesc, srv)
}

var orderAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*OrderAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOrder",
			Handler: unaryHandler("GetOrder", func(srv OrderAdminServer, ctx context.Context, req *GetOrderRequest) (any, error) {
				return srv.GetOrder(ctx, req)
			}),
		},
		{
			MethodName: "ListOrders",
			Handler: unaryHandler("ListOrders", func(srv OrderAdminServer, ctx context.Context, req *ListOrdersRequest) (any, error) {
				return srv.ListOrders(ctx, req)
			}),
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler: unaryHandler("UpdateOrderStatus", func(srv OrderAdminServer, ctx context.Context, req *UpdateOrderStatusRequest) (any, error) {
				return srv.UpdateOrderStatus(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req any](method string, call func(OrderAdminServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	fullMethod := "/" + adminServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderAdminServer), ctx, req.(*Req))
		})
	}
}

// OrderAdminClient calls the admin service. Dial with grpc.ForceCodec(JSONCodec{}).
type OrderAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderAdminClient(cc grpc.ClientConnInterface) *OrderAdminClient {
	return &OrderAdminClient{cc: cc}
}

func (c *OrderAdminClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.cc.Invoke(ctx, "/"+adminServiceName+"/GetOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, "/"+adminServiceName+"/ListOrders", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.cc.Invoke(ctx, "/"+adminServiceName+"/UpdateOrderStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
