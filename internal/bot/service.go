package bot

import (
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/modhound/modhound/internal/db"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
}

func NewService(bot *api.BotAPI, db db.Client) *service {
	return &service{
		bot: bot,
		db:  db,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetUN returns the best user-facing handle for a user.
func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return GetFullName(user)
}

// GetFullName returns the user's display name, falling back to the username.
func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := strings.TrimSpace(strings.Join([]string{user.FirstName, user.LastName}, " "))
	if fullName == "" {
		fullName = user.UserName
	}
	return fullName
}
