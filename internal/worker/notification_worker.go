package worker

import (
	"context"

	"github.com/spec-kit/community-bot/internal/service"
)

// StartNotificationWorker registers notification handlers and starts the
// export loop. The returned channel is closed once the loop has stopped and
// flushed its queue.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	go func() {
		defer close(done)
		notificationService.Run(ctx)
	}()
	return done
}

// StartRewardWorker subscribes the reward resolver to level-up events.
func StartRewardWorker(rewardService *service.RewardService) {
	if rewardService == nil {
		return
	}
	rewardService.RegisterHandlers()
}
