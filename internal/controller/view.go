package controller

import "github.com/bdougie/audioscribe/internal/models"

// Action is an interactive control offered to the user
type Action struct {
	Key   string
	Label string
	Run   func()
}

// View renders the controller's state. Implementations must be safe to
// call from any goroutine.
type View interface {
	SetStatus(msg models.StatusMessage)
	ClearActions()
	AddAction(a Action)
}
