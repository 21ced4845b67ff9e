package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はティドラーのフィードを配信するHTTPサーバー。既定のモード。
	CommandServe Command = "serve"
	// CommandMigrate はティドラースキーマのマイグレーション。
	CommandMigrate Command = "migrate"
	// CommandImport はリモートのフィードをバッグに取り込む。引数: import <bag> <feed-url>
	CommandImport Command = "import"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandImport):      CommandImport,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数からサブコマンドとその引数を取り出す。
// 引数が空、またはサブコマンド名でない場合はserveとして全引数を返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd, args[1:]
	}
	return CommandServe, args
}
