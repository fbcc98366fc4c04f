package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// DocumentUploadAction はファイルをアップロードし、インジェスト完了まで待機する
func DocumentUploadAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.Documents
	result, err := svc.Upload(ctx, ingestion.UploadParams{
		FileName:    filepath.Base(path),
		ContentType: cmd.String("content-type"),
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("アップロードに失敗: %w", err)
	}

	appCtx.Logger().Info("インジェストの完了を待機します", "documentID", result.Document.ID)
	appCtx.Container.Runner.Wait()

	doc, err := svc.Get(ctx, result.Document.ID)
	if err != nil {
		return err
	}
	count, err := svc.ChunkCount(ctx, doc.ID)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "ID:       %s\n", doc.ID)
	fmt.Fprintf(w, "Status:   %s\n", doc.Status)
	fmt.Fprintf(w, "Chunks:   %d\n", count)
	if reason, ok := doc.FailureReason().Get(); ok {
		fmt.Fprintf(w, "Error:    %s\n", reason)
	}
	return ingestionOutcome(doc)
}

// ingestionOutcome は待機後のドキュメントが正常に終端したかを判定する
func ingestionOutcome(doc *document.Document) error {
	if doc.Status == document.StatusFailed {
		reason := doc.FailureReason().OrElse("unknown error")
		return fmt.Errorf("インジェストに失敗しました: %s", reason)
	}
	if !doc.Status.Terminal() {
		return fmt.Errorf("インジェストが完了していません: %s", doc.Status)
	}
	return nil
}

// DocumentListAction はドキュメント一覧を表示する
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Container.Documents.List(ctx)
	if err != nil {
		return fmt.Errorf("ドキュメント一覧の取得に失敗: %w", err)
	}

	printDocuments(cmd.Root().Writer, docs)
	return nil
}

// DocumentShowAction はドキュメントの詳細とチャンクを表示する
func DocumentShowAction(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Container.Documents.Get(ctx, id)
	if err != nil {
		return err
	}
	chunks, err := appCtx.Container.ChunkReader.ListChunks(ctx, id)
	if err != nil {
		return fmt.Errorf("チャンクの取得に失敗: %w", err)
	}

	w := cmd.Root().Writer
	printDocuments(w, []*document.Document{doc})
	fmt.Fprintln(w)
	printChunks(w, chunks)
	return nil
}

// DocumentDeleteAction はドキュメントとチャンクを削除する
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Documents.Delete(ctx, id); err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗: %w", err)
	}
	fmt.Fprintf(cmd.Root().Writer, "deleted: %s\n", id)
	return nil
}

func printDocuments(w io.Writer, docs []*document.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "ドキュメントがありません")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tSIZE\tSTATUS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID,
			d.Title,
			d.FileType,
			d.FileSize,
			d.Status,
			d.UploadDate.Format("2006-01-02 15:04:05"),
		)
	}
	tw.Flush()
}

func printChunks(w io.Writer, chunks []*document.Chunk) {
	fmt.Fprintf(w, "chunks: %d\n", len(chunks))
	for _, c := range chunks {
		location := ""
		if page, ok := c.PageNumber.Get(); ok {
			location = fmt.Sprintf(" p.%d", page)
		}
		if sheet, ok := c.SheetName.Get(); ok {
			location = fmt.Sprintf(" [%s]", sheet)
		}
		fmt.Fprintf(w, "#%d%s (%d chars)\n", c.ChunkIndex, location, len([]rune(c.Content)))
	}
}
