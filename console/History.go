package console

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	historyFileName = ".echonet_bridge_history"
	maxHistorySize  = 1000
)

// getHistoryFilePath は履歴ファイルのパスを取得する
func getHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// ホームディレクトリが取得できない場合はカレントディレクトリに作成
		slog.Warn("ホームディレクトリが取得できませんでした。履歴ファイルはカレントディレクトリに作成されます", "err", err)
		return historyFileName
	}
	return filepath.Join(home, historyFileName)
}

// loadHistory は履歴ファイルから履歴を読み込む。空行と重複は新しい方を残して取り除く
func loadHistory(filePath string) []string {
	file, err := os.Open(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("履歴ファイルの読み込みに失敗しました", "file", filePath, "err", err)
		}
		return []string{}
	}
	defer file.Close()

	var history []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		history = append(history, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("履歴ファイルのスキャン中にエラーが発生しました", "file", filePath, "err", err)
	}
	return cleanHistory(history)
}

func cleanHistory(history []string) []string {
	cleaned := make([]string, 0, len(history))
	seen := make(map[string]struct{})
	for i := len(history) - 1; i >= 0; i-- { // 新しいものから見ていく
		line := strings.TrimSpace(history[i])
		if line == "" {
			continue
		}
		if _, ok := seen[line]; !ok {
			cleaned = append(cleaned, line)
			seen[line] = struct{}{}
		}
	}
	for i, j := 0, len(cleaned)-1; i < j; i, j = i+1, j-1 {
		cleaned[i], cleaned[j] = cleaned[j], cleaned[i]
	}
	if len(cleaned) > maxHistorySize {
		cleaned = cleaned[len(cleaned)-maxHistorySize:]
	}
	return cleaned
}

// saveHistory は履歴をファイルに書き込む
func saveHistory(filePath string, history []string) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		slog.Warn("履歴ファイルの書き込みに失敗しました", "file", filePath, "err", err)
		return
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range cleanHistory(history) {
		if _, err := fmt.Fprintln(writer, line); err != nil {
			slog.Warn("履歴の書き込み中にエラーが発生しました", "file", filePath, "err", err)
			return
		}
	}
	if err := writer.Flush(); err != nil {
		slog.Warn("履歴ファイルのフラッシュ中にエラーが発生しました", "file", filePath, "err", err)
	}
}
