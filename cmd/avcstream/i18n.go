// Package main provides localization for the avcstream CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Stream":           "ストリーム",
		"Encoder":          "エンコーダ",
		"Input and Output": "入出力",
		"Logging":          "ログ",

		// Commands
		"Encode raw video into an H.264 elementary stream": "生の映像を H.264 エレメンタリストリームにエンコード",
		"Encode frames into an H.264 stream":               "フレームを H.264 ストリームにエンコード",
		"List the H.264 encoders ffmpeg offers":            "ffmpeg が提供する H.264 エンコーダを一覧表示",
		"Describe an H.264 stream (Annex-B or MP4)":        "H.264 ストリーム（Annex-B または MP4）を解析",

		"Read frames from a source, encode them with a hardware encoder and write the Annex-B stream.": "ソースからフレームを読み込み、ハードウェアエンコーダでエンコードして Annex-B ストリームを書き出します。",

		// Flags
		"YAML configuration file":                            "YAML 設定ファイル",
		"Frame width in pixels (even)":                       "フレームの幅（ピクセル、偶数）",
		"Frame height in pixels (even)":                      "フレームの高さ（ピクセル、偶数）",
		"Frame rate":                                         "フレームレート",
		"Target bitrate in bits per second":                  "目標ビットレート（bps）",
		"Seconds between keyframes":                          "キーフレーム間隔（秒）",
		"Encoder name (default: first capable encoder)":      "エンコーダ名（デフォルト: 最初に対応したエンコーダ）",
		"Refuse software encoders":                           "ソフトウェアエンコーダを使用しない",
		"Path to ffmpeg executable":                          "ffmpeg 実行ファイルのパス",
		"Frame source (pattern, raw, images)":                "フレームソース（pattern, raw, images）",
		"Raw YV12 file or image directory":                   "YV12 ファイルまたは画像ディレクトリ",
		"Number of frames to read from the source":           "ソースから読み込むフレーム数",
		"Frames each still image is shown for":               "静止画 1 枚あたりの表示フレーム数",
		"Output file (.h264, .ts or .mp4; - discards)":       "出力ファイル（.h264, .ts, .mp4。- で破棄）",
		"Stop after this many frames":                        "このフレーム数で停止",
		"Output execution summary to file (Markdown format)": "実行サマリーをファイルに出力（Markdown形式）",
		"Log level (debug, info, warn, error)":               "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                            "全てのログ出力を抑制",

		// Runtime messages
		"No H.264 encoders found":               "H.264 エンコーダが見つかりません",
		"software":                              "ソフトウェア",
		"hardware":                              "ハードウェア",
		"Exactly one file argument is required": "ファイル引数を 1 つだけ指定してください",
		"Pictures: %d (%d IDR)":                 "ピクチャ数: %d (IDR %d)",
		"No parameter sets found":               "パラメータセットが見つかりません",

		// Summary content
		"Encoding Summary":  "エンコードサマリー",
		"Generated":         "生成日時",
		"Results":           "実行結果",
		"Settings":          "設定",
		"Parameter Sets":    "パラメータセット",
		"NAL Units":         "NAL ユニット",
		"Item":              "項目",
		"Value":             "値",
		"Type":              "種類",
		"Count":             "数",
		"None":              "なし",
		"Frames":            "フレーム数",
		"Fragments":         "フラグメント数",
		"Keyframes":         "キーフレーム数",
		"Skipped Cycles":    "スキップしたサイクル",
		"Stream Size":       "ストリームサイズ",
		"Average Bitrate":   "平均ビットレート",
		"Encode Time":       "エンコード時間",
		"Speed":             "速度",
		"Resolution":        "解像度",
		"Target Bitrate":    "目標ビットレート",
		"Keyframe Interval": "キーフレーム間隔",
		"Source":            "ソース",
		"Output":            "出力",
		"Profile":           "プロファイル",
		"Level":             "レベル",
		"Coded Size":        "符号化サイズ",
		"Generated by":      "生成:",
	})
}
