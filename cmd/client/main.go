package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"netarena/internal/client"
	"netarena/internal/client/ui"
	"netarena/internal/config"
)

// tokenFile 保存会话令牌，重新启动客户端时用于断线重连
func tokenFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "netarena", "session")
}

func main() {
	configPath := flag.String("config", "", "YAML 配置文件路径")
	serverAddr := flag.String("server", "", "服务器地址（覆盖配置）")
	proto := flag.String("proto", "", "传输协议 tcp/kcp/ws（覆盖配置）")
	name := flag.String("name", "", "玩家名")
	controls := flag.String("controls", "wasd", "按键方案 wasd/arrow")
	debug := flag.Bool("debug", false, "显示调试信息")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *serverAddr != "" {
		cfg.Client.Server = *serverAddr
	}
	if *proto != "" {
		cfg.Client.Proto = *proto
	}
	if *name != "" {
		cfg.Client.Name = *name
	}
	codec, err := cfg.Codec()
	if err != nil {
		log.Fatalf("配置无效: %v", err)
	}

	network := client.NewNetworkClient(cfg.Client.Server, cfg.Client.Proto, cfg.Client.Name, codec)
	if token, err := os.ReadFile(tokenFile()); err == nil {
		network.SetSessionToken(strings.TrimSpace(string(token)))
	}
	if err := network.Connect(context.Background()); err != nil {
		log.Fatalf("连接服务器失败: %v", err)
	}
	defer network.Close()

	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err == nil {
		if err := os.WriteFile(tokenFile(), []byte(network.SessionToken()), 0o600); err != nil {
			log.Printf("保存会话令牌失败: %v", err)
		}
	}

	scheme := ui.ParseControlScheme(*controls)
	game := client.NewNetworkGameClient(network, network.JoinResponse(), &ui.KeyboardInput{Scheme: scheme}, cfg)

	// 设置窗口选项
	ebiten.SetWindowSize(ui.ScreenWidth, ui.ScreenHeight)
	ebiten.SetWindowTitle(fmt.Sprintf("NetArena [%s #%d] [%s]", cfg.Client.Name, network.PlayerID(), scheme))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	ebiten.SetTPS(ui.FPS)

	// 运行游戏
	if err := ebiten.RunGame(ui.NewGame(network, game, cfg.Client.Debug || *debug)); err != nil {
		log.Fatal(err)
	}
}
