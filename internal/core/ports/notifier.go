package ports

import "context"

// NotifierPort delivers event notifications to an external chat.
type NotifierPort interface {
	Notify(ctx context.Context, text string) error
}
