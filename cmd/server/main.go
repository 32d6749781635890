package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netarena/internal/config"
	"netarena/internal/server"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "YAML 配置文件路径")
	address := flag.String("addr", "", "服务器监听地址（覆盖配置）")
	proto := flag.String("proto", "", "传输协议 tcp/kcp/ws（覆盖配置）")
	bots := flag.Int("bots", -1, "机器人数量（覆盖配置）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *address != "" {
		cfg.Server.Addr = *address
	}
	if *proto != "" {
		cfg.Server.Proto = *proto
	}
	if *bots >= 0 {
		cfg.Bots.Count = *bots
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置无效: %v", err)
	}

	// 创建服务器
	gameServer, err := server.NewGameServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}
	gameServer.Observers().Add(func(ev server.PlayerEvent) {
		log.Printf("玩家 %d (%s): %s, t=%.2f", ev.PlayerID, ev.Name, ev.Kind, ev.Time)
	})

	if err := gameServer.Start(); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("指标服务异常: %v", err)
			}
		}()
	}

	log.Println("========================================")
	log.Println("  NetArena 联机服务器")
	log.Println("========================================")
	log.Printf("监听地址: %s (%s)", gameServer.Addr(), cfg.Server.Proto)
	log.Printf("最大玩家数: %d", cfg.Server.MaxPlayers)
	log.Printf("服务器 TPS: %d", cfg.Server.TPS)
	log.Printf("机器人: %d (%s)", cfg.Bots.Count, cfg.Bots.Difficulty)
	if metricsServer != nil {
		log.Printf("指标地址: http://%s/metrics", cfg.Server.MetricsAddr)
	}
	log.Println("========================================")
	log.Println("服务器正在运行...")
	log.Println("按 Ctrl+C 停止服务器")

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if metricsServer != nil {
		_ = metricsServer.Close()
	}
	gameServer.Shutdown()

	log.Println("服务器已关闭，再见！")
}
