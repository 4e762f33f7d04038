// Точка входа promo-chat — интерактивный помощник составления
// промо-писем учебного заведения. Печатает первичное письмо и
// переходит в диалоговый цикл stdin/stdout.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sftmadness/api-module/internal/assistant"
)

func main() {
	apiKey := os.Getenv("SFT_CHAT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SFT_CHAT_API_KEY не задан")
		os.Exit(1)
	}

	baseURL := getenvDefault("SFT_CHAT_BASE_URL", "https://api.mistral.ai")
	model := getenvDefault("SFT_CHAT_MODEL", "pixtral-12b-2409")
	college := getenvDefault("SFT_CHAT_COLLEGE", "Neumont College of Computer Science")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client := assistant.New(baseURL, apiKey, model, nil, logger)
	session := assistant.NewSession(client, college)

	ctx := context.Background()

	// Первичное промо-письмо
	email, err := session.DraftIntroEmail(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка составления письма:", err)
		os.Exit(1)
	}
	fmt.Println(email)

	// Диалоговый цикл
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">: ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		reply, err := session.Reply(ctx, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Ошибка:", err)
			continue
		}
		fmt.Println(reply)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
