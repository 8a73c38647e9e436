// Package presence holds the user status transition rules and the timer that
// drives automatic ONLINE to IDLE transitions.
package presence

import (
	"fmt"

	"github.com/noteduco342/chatsync/internal/models"
)

type Trigger int

const (
	SignIn Trigger = iota + 1
	SignOut
	SetStatus
	Activity
	IdleTimeout
)

func (t Trigger) String() string {
	switch t {
	case SignIn:
		return "sign_in"
	case SignOut:
		return "sign_out"
	case SetStatus:
		return "set_status"
	case Activity:
		return "activity"
	case IdleTimeout:
		return "idle_timeout"
	}
	return "unknown"
}

// Input is one transition request. Requested is read for SetStatus, Default
// for SignIn.
type Input struct {
	Trigger   Trigger
	Requested models.UserStatus
	Default   models.UserStatus
}

type InvalidStatusError struct {
	Status models.UserStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("status %q cannot be selected", e.Status)
}

// Next returns the status that follows current for the given input.
//
//	OFFLINE --sign in--> default (ONLINE unless configured otherwise)
//	any     --sign out--> OFFLINE
//	any     --set status S (ONLINE|IDLE|MUTE)--> S
//	ONLINE  --idle timeout--> IDLE
//	IDLE    --activity--> ONLINE
//
// MUTE is only left by an explicit status change or sign out. Combinations not
// listed leave the status unchanged.
func Next(current models.UserStatus, in Input) (models.UserStatus, error) {
	switch in.Trigger {
	case SignIn:
		if current != models.StatusOffline && current != "" {
			return current, nil
		}
		if in.Default.Selectable() {
			return in.Default, nil
		}
		return models.StatusOnline, nil
	case SignOut:
		return models.StatusOffline, nil
	case SetStatus:
		if !in.Requested.Selectable() {
			return current, &InvalidStatusError{Status: in.Requested}
		}
		return in.Requested, nil
	case Activity:
		if current == models.StatusIdle {
			return models.StatusOnline, nil
		}
		return current, nil
	case IdleTimeout:
		if current == models.StatusOnline {
			return models.StatusIdle, nil
		}
		return current, nil
	}
	return current, fmt.Errorf("unknown presence trigger %d", in.Trigger)
}
