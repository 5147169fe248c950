package main

import (
	"context"
	_ "embed"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"customerbatch/example/customer/app"
	"customerbatch/pkg/batch/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed resources/job.yaml
var embeddedJSL []byte

func main() {
	inputPath := flag.String("input", "", "読み込む顧客 CSV ファイルのパス (省略時は batch.input.path)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())

	// Ctrl+C などでジョブを中断する
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("シグナル '%v' を受信しました。ジョブの停止を試みます...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	exitCode := app.RunApplication(ctx, envFilePath, embeddedConfig, embeddedJSL, *inputPath)
	cancel()
	os.Exit(exitCode)
}
