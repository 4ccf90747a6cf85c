package transfer

type TelegramConnection struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}
