package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Pipeline lifecycle (info)
		"Starting pipeline":               "パイプラインを開始します",
		"Pipeline completed successfully": "パイプラインが正常に完了しました",
		"Encoding %s into %s":             "%s を %s にエンコード中",
		"Output saved to %s":              "出力を %s に保存しました",
		"Summary saved to %s":             "サマリーを %s に保存しました",

		// Session lifecycle (info)
		"Encoder %s started: %dx%d at %d fps, %d bps":    "エンコーダ %s を開始しました: %dx%d, %d fps, %d bps",
		"Encoded %d frames into %d bytes (%d keyframes)": "%d フレームを %d バイトにエンコードしました (キーフレーム %d)",
		"Parameter sets: %s profile, level %s, %dx%d":    "パラメータセット: %s プロファイル, レベル %s, %dx%d",

		// Per-buffer details (debug)
		"Run %s started":                          "実行 %s を開始しました",
		"Selected encoder %s (hardware: %t)":      "エンコーダ %s を選択しました (ハードウェア: %t)",
		"Drained %d bytes (pts %d us, flags %#x)": "%d バイトを取り出しました (pts %d us, フラグ %#x)",
		"Encoder %s released after %d frames":     "エンコーダ %s を %d フレーム後に解放しました",
		"Ignoring encoder stop error: %v":         "エンコーダ停止エラーを無視します: %v",
		"Ignoring encoder release error: %v":      "エンコーダ解放エラーを無視します: %v",
		"Ignoring source close error: %v":         "ソースのクローズエラーを無視します: %v",
		"Starting %s: %s":                         "%s を起動中: %s",
		"ffmpeg offers %d H.264 encoders":         "ffmpeg は %d 個の H.264 エンコーダを提供しています",

		// Warnings
		"Encoder output has no parameter sets yet, frame %d produced no data": "エンコーダ出力にパラメータセットがまだありません。フレーム %d は出力なしです",
		"Encoder did not reach end of stream within %d ms":                    "エンコーダが %d ms 以内にストリーム終端に達しませんでした",
		"Interrupted, shutting down...":                                       "中断されました。シャットダウン中...",
		"Could not describe parameter sets: %v":                               "パラメータセットを解析できませんでした: %v",
		"Could not parse fragment: %v":                                        "フラグメントを解析できませんでした: %v",
		"Failed to write summary: %s":                                         "サマリーの書き込みに失敗しました: %s",
		"ffmpeg exited: %v":                                                   "ffmpeg が終了しました: %v",

		// Errors
		"Encoder failure during %s: %v": "%s 中にエンコーダが失敗しました: %v",
		"Failed to open encoder: %s":    "エンコーダを開けませんでした: %s",
		"Failed to open source: %s":     "ソースを開けませんでした: %s",
		"Failed to open output: %s":     "出力を開けませんでした: %s",
		"Failed to encode video: %s":    "エンコードに失敗しました: %s",
		"Failed to write output: %s":    "出力の書き込みに失敗しました: %s",
	})
}
