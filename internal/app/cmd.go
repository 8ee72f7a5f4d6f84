package app

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は大気汚染データのキャッシュ更新ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// commandUsages は使い方に表示するサブコマンドと説明。
var commandUsages = []struct {
	usage string
	desc  string
}{
	{"serve", "APIサーバーを起動する（デフォルト）"},
	{"worker", "観測所データのキャッシュを定期更新する"},
	{"migrate [up|down|version]", "スキーマを最新化する / 1つ戻す / バージョンを表示する"},
	{"healthcheck", "ローカルの /health を確認する"},
	{"help", "この使い方を表示する"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。未知のコマンドはそのまま返し、Validがfalseになる。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	default:
		return Command(args[0])
	}
}

// Valid は既知のサブコマンドかを返す。
func (c Command) Valid() bool {
	switch c {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck, CommandHelp:
		return true
	default:
		return false
	}
}

// MigrateAction はmigrateサブコマンドの動作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// ParseMigrateAction はmigrateに続く引数を解析する。省略時はMigrateUp。
func ParseMigrateAction(args []string) (MigrateAction, error) {
	if len(args) < 2 {
		return MigrateUp, nil
	}
	switch a := MigrateAction(args[1]); a {
	case MigrateUp, MigrateDown, MigrateVersion:
		return a, nil
	default:
		return "", fmt.Errorf("unknown migrate action %q", args[1])
	}
}

// WriteUsage は使い方を書き込む。
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ecopoints <command>")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commandUsages {
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.desc)
	}
	tw.Flush()
}
