package chat

import "context"

// Notifier is the hub's outbound channel to the human operator.
type Notifier interface {
	// Notify sends a plain-text notification.
	Notify(ctx context.Context, text string) error

	// SendImages forwards saved image paths as attachments.
	SendImages(ctx context.Context, paths []string) error

	// PromptAccess asks the operator to allow or deny access. The answer
	// round-trips back through the command topic as a grant_access or
	// deny_access event.
	PromptAccess(ctx context.Context, text string) error

	// NotifyFailure reports that an in-flight interactive command failed.
	NotifyFailure(ctx context.Context, text string) error
}
