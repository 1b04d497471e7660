package conversation

// User-visible fixed messages.
const (
	MsgStoreUnavailable    = "現在、データベースに接続できません。時間をおいて再度お試しください。"
	MsgModelFailure        = "AIの応答がありませんでした。時間をおいて再度お試しください。"
	MsgGenericError        = "エラーが発生しました。時間をおいて再度お試しください。"
	MsgEnterSituation      = "シチュエーションを入力してください"
	MsgSituationRegistered = "シチュエーションを登録しました。会話を開始できます。"
	MsgSituationRequired   = "シチュエーションが登録されていません。/init で登録してください。"
	MsgEnterReinput        = "入力してください"
	MsgCleared             = "過去の会話を削除しました。シチュエーションは維持されます。"
	MsgNoSituation         = "現在登録されているシチュエーションはありません。/init で登録できます。"
	MsgEnterExpansion      = "拡張したいシチュエーションを入力してください。"
	MsgExpansionFailed     = "プロンプトの生成に失敗しました。時間をおいて再度お試しください。"
	MsgChannelNotAllowed   = "このチャンネルでは利用できません。"
	MsgTextChannelOnly     = "このコマンドはテキストチャンネルでのみ使用できます。"
	MsgNoPendingPrompt     = "送信予定のプロンプトはありません。"

	// EmptyReplyPlaceholder stands in for an empty model reply.
	EmptyReplyPlaceholder = "（応答が空でした）"

	ShowSituationTitle = "現在のシチュエーション"
)
