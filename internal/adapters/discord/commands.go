package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

const embedColor = 0x3b82f6

// Commands is the slash command set registered for the bot.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: string(domain.CommandTime), Description: "現在時刻を返信します"},
		{Name: string(domain.CommandInit), Description: "シチュエーション入力モード"},
		{Name: string(domain.CommandClear), Description: "会話履歴を削除します"},
		{Name: string(domain.CommandShow), Description: "現在登録されているシチュエーションを表示します"},
		{Name: string(domain.CommandPrompt), Description: "シチュエーションをロールプレイ用プロンプトに拡張します"},
		{Name: string(domain.CommandPending), Description: "次に送信されるプロンプトを表示します（デバッグ用）"},
	}
}

// interactionResponse converts a command result to a Discord response.
func interactionResponse(res domain.CommandResult) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{
		Content: truncate(res.Content, MaxMessageLength),
	}
	if res.EmbedTitle != "" || res.EmbedBody != "" {
		data.Embeds = []*discordgo.MessageEmbed{{
			Title:       res.EmbedTitle,
			Description: truncate(res.EmbedBody, 4096),
			Color:       embedColor,
		}}
	}
	if res.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// RegisterCommands overwrites the application's commands. An empty guildID
// registers them globally.
func RegisterCommands(s *discordgo.Session, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	return s.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
}
