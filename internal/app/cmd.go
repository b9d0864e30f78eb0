package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandLogin はログインを示す。
	CommandLogin Command = "login"
	// CommandSignup はアカウント作成を示す。
	CommandSignup Command = "signup"
	// CommandLogout はログアウトを示す。
	CommandLogout Command = "logout"
	// CommandFeed はフィード表示を示す。
	CommandFeed Command = "feed"
	// CommandComments は指定投稿のコメント表示を示す。
	CommandComments Command = "comments"
	// CommandPost は新規投稿を示す。
	CommandPost Command = "post"
	// CommandLike はいいねを示す。
	CommandLike Command = "like"
	// CommandComment はコメント送信を示す。
	CommandComment Command = "comment"
	// CommandProfile はプロフィール表示を示す。
	CommandProfile Command = "profile"
	// CommandImage は投稿画像のダウンロードを示す。
	CommandImage Command = "image"
	// CommandVersion はバージョン表示を示す。
	CommandVersion Command = "version"
	// CommandHelp は使い方の表示を示す。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空の場合はCommandFeed、サポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandFeed, nil
	}

	switch args[0] {
	case "login":
		return CommandLogin, args[1:]
	case "signup":
		return CommandSignup, args[1:]
	case "logout":
		return CommandLogout, args[1:]
	case "feed":
		return CommandFeed, args[1:]
	case "comments":
		return CommandComments, args[1:]
	case "post":
		return CommandPost, args[1:]
	case "like":
		return CommandLike, args[1:]
	case "comment":
		return CommandComment, args[1:]
	case "profile":
		return CommandProfile, args[1:]
	case "image":
		return CommandImage, args[1:]
	case "version":
		return CommandVersion, args[1:]
	default:
		return CommandHelp, args
	}
}
