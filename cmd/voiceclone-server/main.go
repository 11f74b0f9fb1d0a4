// @title 声音克隆 TTS 服务 API 文档
// @version 1.0
// @description 基于 Coqui XTTS v2 的声音克隆与语音合成服务
// @host localhost:8000
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"voiceclone-server-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 voiceclone-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "voiceclone-server failed: %v\n", err)
		os.Exit(1)
	}
}
