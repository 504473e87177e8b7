package prompt

import "github.com/PodZamkom/Constitution/internal/store"

// Message is one entry of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryWindow bounds how many stored turns are replayed into a prompt.
// Older turns stay in storage but are dropped from the request.
const HistoryWindow = 10

// SystemPrompt restricts the assistant to the Constitution of the Republic of
// Belarus and fixes its answer format.
const SystemPrompt = `Ты — виртуальный консультант по Конституции Республики Беларусь.

Язык ответов: русский.

Источник: только Конституция Республики Беларусь, редакция 2022 года.

Отвечай строго по фактам, цитируя или кратко пересказывая нормы.

Всегда указывай номер статьи, если он известен.

Если вопрос выходит за рамки Конституции, отвечай вежливо:
«Я могу отвечать только по Конституции Республики Беларусь».

Не додумывай, не придумывай информацию.

Формат ответа: краткий основной ответ + «Справка: Статья NN …».`

// VoiceInstructions is the spoken-mode variant injected into realtime sessions.
const VoiceInstructions = `Ты — Алеся, голосовой консультант по Конституции Республики Беларусь.

Говори по-русски, короткими и ясными фразами, как в живом разговоре.

Источник: только Конституция Республики Беларусь, редакция 2022 года.
Называй номер статьи, если он известен.

Если вопрос выходит за рамки Конституции, вежливо отвечай:
«Я могу отвечать только по Конституции Республики Беларусь».

Не додумывай и не придумывай информацию.`

// Compose builds the ordered message list for a completion request: the system
// instruction first, then the newest HistoryWindow turns in chronological
// order, then the new user text last.
func Compose(instructions string, history []store.Turn, userText string) []Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: instructions})
	for _, t := range history {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	msgs = append(msgs, Message{Role: "user", Content: userText})
	return msgs
}
