// session.go — диалоговая сессия промо-ассистента учебного заведения.
// Держит упорядоченную историю сообщений: системный промпт, обучающий
// обмен и все реплики диалога. История отправляется целиком при каждом
// обращении к модели.
package assistant

import (
	"context"
	"fmt"
)

// Session — диалоговая сессия с промо-ассистентом.
// Не потокобезопасна: одна сессия — один диалог.
type Session struct {
	client  *Client
	college string
	history []Message
}

// NewSession создаёт сессию, засеянную системным промптом для
// продвижения указанного учебного заведения и одним обучающим обменом.
func NewSession(client *Client, college string) *Session {
	s := &Session{
		client:  client,
		college: college,
	}

	s.append(RoleSystem, fmt.Sprintf(`You are a helpful assistant tasked with promoting %[1]s.
Ensure all responses focus solely on %[1]s, its programs, values, achievements, and unique offerings.
Avoid mentioning other institutions or making comparisons unless specifically asked to do so by the user.

Try to keep things as concise as possible, while still keeping the conversational/professional tone.

Ensure that responses to prospective student questions use varied sentence structures and tones to keep the conversation engaging.
Avoid reusing exact phrasing from the initial email.
Prompt a few questions the user can ask you the assistant about the school.

Do not suggest questions that have either already been answered or have been asked before.`, college))

	// Обучающий обмен: задаёт модели образец тона ответов
	s.append(RoleUser, "What scholarships do you offer?")
	s.append(RoleAssistant, fmt.Sprintf(`Great question!
%s offers a variety of scholarships, including merit-based awards for academic excellence, need-based assistance, and special grants for extracurricular achievements.
Our admissions team is happy to guide you through the application process.
Let me know if you'd like more details on specific opportunities!`, college))

	return s
}

// History возвращает копию истории сообщений.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Reply добавляет сообщение пользователя в историю, запрашивает ответ
// модели и добавляет его в историю.
func (s *Session) Reply(ctx context.Context, userMessage string) (string, error) {
	s.append(RoleUser, userMessage)

	reply, err := s.client.Complete(ctx, s.history)
	if err != nil {
		// Сообщение пользователя остаётся в истории, повторный вызов
		// Reply отправит его ещё раз
		return "", err
	}

	s.history = append(s.history, Message{Role: RoleAssistant, Content: reply.Content})
	return reply.Content, nil
}

// DraftIntroEmail составляет первичное промо-письмо для абитуриентов.
func (s *Session) DraftIntroEmail(ctx context.Context) (string, error) {
	return s.Reply(ctx, fmt.Sprintf(`Write a casual and inviting email to promote %s to prospective students and their families.
Use a friendly and personal tone. Highlight the school's unique features, such as academic programs, campus life, and opportunities for growth, in a concise manner.
Mention that you are an AI assistant and encourage the recipient to reply with any questions they might have, offering examples of questions they can ask.
Keep the email short and engaging.`, s.college))
}

func (s *Session) append(role, content string) {
	s.history = append(s.history, Message{Role: role, Content: content})
}
