// Package app 承载网关进程的生命周期：按运行模式装配接入层与消费端，
// 统一处理启动、系统信号与限时停机。
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/logger"

	"go.uber.org/zap"
)

// 运行模式。收单接入层与队列消费端可以同进程跑，也可以分开部署。
const (
	ModeAll    = "all"    // 接入层 + 消费端
	ModeAPI    = "api"    // 仅收单 HTTP 接入层
	ModeWorker = "worker" // 仅队列消费端（商户通知、关单、告警）
)

// Options 进程启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal   // 触发停机的系统信号
	ShutdownTimeout time.Duration // 停机宽限期，超时强退
	Mode            string
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeAll
	case ModeAll, ModeAPI, ModeWorker:
	default:
		return opts, fmt.Errorf("unknown run mode %q", opts.Mode)
	}
	return opts, nil
}
