package methods

import (
	"time"

	"github.com/eugener/gatekeeper/internal"
)

func f(v float64) *float64 { return &v }

// builtin is the default method descriptor set: a representative slice of
// the upstream surface spanning plain, cacheable, destination-scoped, and
// upload-bearing methods, plus the handful that carry cross-field rules.
// Grounded on the static Route/ProviderConfig tables in gateway.go --
// an immutable slice, no per-method branching in callers.
var builtin = []gateway.MethodDescriptor{
	{
		Name:        "getMe",
		Cacheable:   true,
		CacheTTL:    time.Hour,
		Category:    "info",
		Description: "returns basic information about the bot",
	},
	{
		Name:        "getWebhookInfo",
		Cacheable:   true,
		CacheTTL:    60 * time.Second,
		Category:    "info",
		Description: "returns current webhook status",
	},
	{
		Name:     "getStickerSet",
		Required: []string{"name"},
		Schema: map[string]gateway.FieldSchema{
			"name": {Type: "string"},
		},
		Cacheable:   true,
		CacheTTL:    5 * time.Minute,
		Category:    "stickers",
		Description: "returns a sticker set by name",
	},
	{
		Name:        "getChat",
		Required:    []string{"chat_id"},
		Cacheable:   true,
		CacheTTL:    2 * time.Minute,
		Category:    "chat",
		Description: "returns up to date information about a chat",
	},
	{
		Name:     "getChatMember",
		Required: []string{"chat_id", "user_id"},
		Category: "chat",
	},
	{
		Name:     "getChatAdministrators",
		Required: []string{"chat_id"},
		Category: "chat",
	},
	{
		Name:        "getChatMemberCount",
		Required:    []string{"chat_id"},
		Cacheable:   true,
		CacheTTL:    30 * time.Second,
		Category:    "chat",
		Description: "returns the number of members in a chat",
	},
	{
		Name:        "sendMessage",
		Required:    []string{"chat_id", "text"},
		Optional:    []string{"parse_mode", "reply_markup", "disable_notification"},
		Schema: map[string]gateway.FieldSchema{
			"text": {Type: "string", Max: f(4096)},
		},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "messaging",
		Description: "sends a text message",
	},
	{
		Name:        "editMessageText",
		Required:    []string{"text"},
		Optional:    []string{"chat_id", "message_id", "inline_message_id", "parse_mode"},
		CrossField: []gateway.CrossFieldRule{
			{
				Description: "either chat_id+message_id or inline_message_id must be present",
				AnyOf: [][]string{
					{"chat_id", "message_id"},
					{"inline_message_id"},
				},
			},
		},
		Category:    "messaging",
		Description: "edits the text of an existing message",
	},
	{
		Name:     "deleteMessage",
		Required: []string{"chat_id", "message_id"},
		Category: "messaging",
	},
	{
		Name:        "forwardMessage",
		Required:    []string{"chat_id", "from_chat_id", "message_id"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "messaging",
	},
	{
		Name:        "copyMessage",
		Required:    []string{"chat_id", "from_chat_id", "message_id"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "messaging",
	},
	{
		Name:         "sendPhoto",
		Required:     []string{"chat_id", "photo"},
		Optional:     []string{"caption", "parse_mode"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"photo"},
		Category:     "messaging",
	},
	{
		Name:         "sendDocument",
		Required:     []string{"chat_id", "document"},
		Optional:     []string{"caption", "thumbnail"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"document", "thumbnail"},
		Category:     "messaging",
	},
	{
		Name:         "sendVideo",
		Required:     []string{"chat_id", "video"},
		Optional:     []string{"caption", "duration", "width", "height"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"video", "thumbnail"},
		Category:     "messaging",
	},
	{
		Name:         "sendAnimation",
		Required:     []string{"chat_id", "animation"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"animation", "thumbnail"},
		Category:     "messaging",
	},
	{
		Name:         "sendAudio",
		Required:     []string{"chat_id", "audio"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"audio", "thumbnail"},
		Category:     "messaging",
	},
	{
		Name:         "sendVoice",
		Required:     []string{"chat_id", "voice"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"voice"},
		Category:     "messaging",
	},
	{
		Name:         "sendSticker",
		Required:     []string{"chat_id", "sticker"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		UploadFields: []string{"sticker"},
		Category:     "stickers",
	},
	{
		Name:         "sendMediaGroup",
		Required:     []string{"chat_id", "media"},
		DestScoped:   true,
		DestIDField:  "chat_id",
		NestedUpload: []string{"media"},
		Schema: map[string]gateway.FieldSchema{
			"media": {Type: "array", Min: f(2), Max: f(10)},
		},
		Category: "messaging",
	},
	{
		Name:        "sendLocation",
		Required:    []string{"chat_id", "latitude", "longitude"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "messaging",
	},
	{
		Name:        "sendContact",
		Required:    []string{"chat_id", "phone_number", "first_name"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "messaging",
	},
	{
		Name:        "sendPoll",
		Required:    []string{"chat_id", "question", "options"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Schema: map[string]gateway.FieldSchema{
			"options": {Type: "array", Min: f(2), Max: f(10)},
		},
		Category: "messaging",
	},
	{
		Name:        "sendDice",
		Required:    []string{"chat_id"},
		Optional:    []string{"emoji"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Schema: map[string]gateway.FieldSchema{
			"emoji": {Type: "string", Enum: []string{"🎲", "🎯", "🏀", "⚽", "🎳", "🎰"}},
		},
		Category: "messaging",
	},
	{
		Name:        "sendChatAction",
		Required:    []string{"chat_id", "action"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Schema: map[string]gateway.FieldSchema{
			"action": {Type: "string", Enum: []string{"typing", "upload_photo", "record_video", "upload_video", "record_voice", "upload_voice", "upload_document", "choose_sticker", "find_location", "record_video_note", "upload_video_note"}},
		},
		Category: "messaging",
	},
	{
		Name:     "answerCallbackQuery",
		Required: []string{"callback_query_id"},
		Optional: []string{"text", "show_alert"},
		Category: "callbacks",
	},
	{
		Name:     "answerInlineQuery",
		Required: []string{"inline_query_id", "results"},
		Category: "callbacks",
	},
	{
		Name:     "banChatMember",
		Required: []string{"chat_id", "user_id"},
		Category: "admin",
	},
	{
		Name:     "unbanChatMember",
		Required: []string{"chat_id", "user_id"},
		Category: "admin",
	},
	{
		Name:     "restrictChatMember",
		Required: []string{"chat_id", "user_id", "permissions"},
		Category: "admin",
	},
	{
		Name:     "promoteChatMember",
		Required: []string{"chat_id", "user_id"},
		Category: "admin",
	},
	{
		Name:     "setChatTitle",
		Required: []string{"chat_id", "title"},
		Schema: map[string]gateway.FieldSchema{
			"title": {Type: "string", Min: f(1), Max: f(128)},
		},
		Category: "admin",
	},
	{
		Name:     "setChatDescription",
		Required: []string{"chat_id"},
		Optional: []string{"description"},
		Category: "admin",
	},
	{
		Name:         "setChatPhoto",
		Required:     []string{"chat_id", "photo"},
		UploadFields: []string{"photo"},
		Category:     "admin",
	},
	{
		Name:     "pinChatMessage",
		Required: []string{"chat_id", "message_id"},
		Category: "admin",
	},
	{
		Name:     "unpinChatMessage",
		Required: []string{"chat_id"},
		Optional: []string{"message_id"},
		Category: "admin",
	},
	{
		Name:     "leaveChat",
		Required: []string{"chat_id"},
		Category: "admin",
	},
	{
		Name:        "setWebhook",
		Required:    []string{"url"},
		Optional:    []string{"secret_token", "max_connections", "allowed_updates"},
		UploadFields: []string{"certificate"},
		Schema: map[string]gateway.FieldSchema{
			"max_connections": {Type: "integer", Min: f(1), Max: f(100)},
		},
		Category: "webhook",
	},
	{
		Name:     "deleteWebhook",
		Optional: []string{"drop_pending_updates"},
		Category: "webhook",
	},
	{
		Name:     "getUpdates",
		Optional: []string{"offset", "limit", "timeout", "allowed_updates"},
		Schema: map[string]gateway.FieldSchema{
			"limit": {Type: "integer", Min: f(1), Max: f(100)},
		},
		Category: "webhook",
	},
	{
		Name:         "setMyCommands",
		Required:     []string{"commands"},
		Schema: map[string]gateway.FieldSchema{
			"commands": {Type: "array", Max: f(100)},
		},
		Category: "admin",
	},
	{
		Name:        "getMyCommands",
		Cacheable:   true,
		CacheTTL:    5 * time.Minute,
		Category:    "admin",
		Description: "returns the current list of bot commands",
	},
	{
		Name:     "deleteMyCommands",
		Category: "admin",
	},
	{
		Name:     "setMyName",
		Optional: []string{"name", "language_code"},
		Category: "admin",
	},
	{
		Name:     "setMyDescription",
		Optional: []string{"description", "language_code"},
		Category: "admin",
	},
	{
		Name:         "uploadStickerFile",
		Required:     []string{"user_id", "sticker", "sticker_format"},
		UploadFields: []string{"sticker"},
		Category:     "stickers",
	},
	{
		Name:         "createNewStickerSet",
		Required:     []string{"user_id", "name", "title", "stickers"},
		NestedUpload: []string{"stickers"},
		Category:     "stickers",
	},
	{
		Name:         "addStickerToSet",
		Required:     []string{"user_id", "name", "sticker"},
		NestedUpload: []string{"sticker"},
		Category:     "stickers",
	},
	{
		Name:     "deleteStickerFromSet",
		Required: []string{"sticker"},
		Category: "stickers",
	},
	{
		Name:     "getFile",
		Required: []string{"file_id"},
		Cacheable: true,
		CacheTTL:  time.Minute,
		Category:  "files",
	},
	{
		Name:        "exportChatInviteLink",
		Required:    []string{"chat_id"},
		Category:    "admin",
	},
	{
		Name:     "createChatInviteLink",
		Required: []string{"chat_id"},
		Optional: []string{"expire_date", "member_limit", "name"},
		Category: "admin",
	},
	{
		Name:     "answerPreCheckoutQuery",
		Required: []string{"pre_checkout_query_id", "ok"},
		Optional: []string{"error_message"},
		Category: "payments",
	},
	{
		Name:        "sendInvoice",
		Required:    []string{"chat_id", "title", "description", "payload", "currency", "prices"},
		DestScoped:  true,
		DestIDField: "chat_id",
		Category:    "payments",
	},
}
