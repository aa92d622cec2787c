package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPService 收单 HTTP 接入层，包一层 http.Server 交给 Runner 托管
type HTTPService struct {
	server *http.Server
}

// NewHTTPService 创建接入层服务。回调与下单都是小报文，
// 读头超时挡住慢连接占用。
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string { return "gateway-api" }

// Start 监听端口，正常停机不算错误
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 在宽限期内排空在途请求
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
