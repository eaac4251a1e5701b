package scheduler

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/modhound/modhound/internal/db"
)

// Action is one deferred platform operation. Implementations must be
// idempotent: the queue guarantees at-least-once execution, so re-running
// against an already-resolved target has to be harmless.
type Action interface {
	Execute(ctx context.Context, job *db.ScheduledJob) error
}

type actionBot interface {
	Request(c api.Chattable) (*api.APIResponse, error)
}

type unpinAction struct {
	bot actionBot
}

func (a *unpinAction) Execute(_ context.Context, job *db.ScheduledJob) error {
	_, err := a.bot.Request(api.UnpinChatMessageConfig{
		BaseChatMessage: api.BaseChatMessage{
			ChatConfig: api.ChatConfig{ChatID: job.ChatID},
			MessageID:  int(job.TargetID),
		},
	})
	return err
}

type unmuteAction struct {
	bot actionBot
}

// Restores the full default member permission set rather than lifting the
// restriction, so it also repairs mutes issued without an expiry.
func (a *unmuteAction) Execute(_ context.Context, job *db.ScheduledJob) error {
	_, err := a.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: job.ChatID},
			UserID:     job.TargetID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendAudios:         true,
			CanSendDocuments:      true,
			CanSendPhotos:         true,
			CanSendVideos:         true,
			CanSendVideoNotes:     true,
			CanSendVoiceNotes:     true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
		},

		UseIndependentChatPermissions: true,
	})
	return err
}

type deleteMessageAction struct {
	bot actionBot
}

func (a *deleteMessageAction) Execute(_ context.Context, job *db.ScheduledJob) error {
	_, err := a.bot.Request(api.NewDeleteMessage(job.ChatID, int(job.TargetID)))
	return err
}

func defaultActions(bot actionBot) map[db.JobType]Action {
	return map[db.JobType]Action{
		db.JobTypeUnpin:         &unpinAction{bot: bot},
		db.JobTypeUnmute:        &unmuteAction{bot: bot},
		db.JobTypeDeleteMessage: &deleteMessageAction{bot: bot},
	}
}
