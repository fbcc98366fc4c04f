package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	coreask "github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/document"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	// フラグの取得
	fileType := cmd.String("file-type")
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")

	// 質問文の取得
	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	params := coreask.AskParams{Query: question}
	if fileType != "" {
		ft, err := document.ParseFileType(fileType)
		if err != nil {
			return err
		}
		params.FileType = mo.Some(ft)
	}

	slog.Info("質問応答を開始",
		"question", question,
		"fileType", fileType,
		"showSources", showSources,
	)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.Ask.Ask(ctx, params)
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return fmt.Errorf("質問応答に失敗: %w", err)
	}

	printAnswer(cmd.Root().Writer, result, showSources)

	slog.Info("質問応答が完了しました", "sources", len(result.Sources))
	return nil
}

// printAnswer は回答と、必要なら参照ソースを出力する
func printAnswer(w io.Writer, result *coreask.AskResult, showSources bool) {
	fmt.Fprintln(w, result.Answer)

	// --show-sourcesフラグが指定されている場合、参照ソースも出力
	if !showSources || len(result.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- 参照ソース ---")
	for i, source := range result.Sources {
		location := ""
		if page, ok := source.PageNumber.Get(); ok {
			location = fmt.Sprintf(" p.%d", page)
		}
		if sheet, ok := source.SheetName.Get(); ok {
			location = fmt.Sprintf(" [%s]", sheet)
		}
		fmt.Fprintf(w, "[%d] %s%s スコア: %.4f\n    %s\n",
			i+1,
			source.FileName,
			location,
			source.Similarity,
			source.Excerpt,
		)
	}
}
