package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	modeMarkdown = "Markdown"
	modeHTML     = "HTML"
)

const (
	welcomeText = "*🚀 Hi! I'm seekbot.*\n\n" +
		"*✍️ Ask me anything and I'll do my best to help.*\n" +
		"*Use /cancel to abort a request in progress.*"

	emptyInputText = "*⚠️ Your message looks empty. Please send some text.*"

	busyText = "*⏳ Please wait for your previous request to finish before sending a new one.*"

	workingText = "*⏳ Working on your request. One moment...*"

	cancelledTaskText = "*❌ Your request was cancelled.*"
	cancelDoneText    = "*Your current request has been cancelled.*"
	nothingToCancel   = "*You have no request in progress.*"

	verifiedText  = "Verified ✔️"
	notMemberText = "❌ You haven't joined the channel yet."

	unexpectedErrText = "*⚠️ Something went wrong while processing your request. Please try again later.*"
)

func cooldownText(seconds int) string {
	return fmt.Sprintf("*⏳ Please wait %d seconds before sending a new request.*", seconds)
}

func subscriptionPromptText(firstName string) string {
	return fmt.Sprintf(
		"*• Sorry, %s 🤷🏻‍♀*\n"+
			"*• To use this bot 👨🏻‍💻*\n"+
			"*• you must subscribe to its official channel 🌐*",
		firstName)
}

// subscriptionMarkup builds the channel-link + verify keyboard. The markup
// type is adapter-specific (Telegram).
func subscriptionMarkup(channel string) *tele.ReplyMarkup {
	url := "https://t.me/" + strings.TrimPrefix(channel, "@")
	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{
			{{Text: "Bot channel 🌐", URL: url}},
			{{Text: "Verify", Data: "verify"}},
		},
	}
}

func firstContactText(p profileView, total int64) string {
	username := p.Username
	if username == "" {
		username = "N/A"
	}
	return fmt.Sprintf(
		"☑️ New user joined\n"+
			"━━━━━━━━━━━━━\n"+
			"👤 Name: <code>%s</code>\n"+
			"🔗 Handle: @%s\n"+
			"🆔 ID: <code>%d</code>\n"+
			"━━━━━━━━━━━━━\n"+
			"📊 Total users: %d",
		p.FirstName, username, p.ID, total)
}

type profileView struct {
	ID        int64
	FirstName string
	Username  string
}
