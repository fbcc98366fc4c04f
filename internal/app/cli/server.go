package cli

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// shutdownTimeout はHTTPサーバーの停止を待つ時間
const shutdownTimeout = 15 * time.Second

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := appCtx.Config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	return appCtx.Container.HTTPServer().ListenAndServe(ctx, port, shutdownTimeout)
}
