package application

import (
	"errors"
	"strings"

	"telegram-ai-autoposter/internal/domain/model"
)

// Callback actions carried in inline button data.
const (
	ActionNewPost  = "menu:new"
	ActionMyPosts  = "menu:list"
	ActionConfirm  = "confirm"
	ActionRegen    = "regen"
	ActionDelete   = "delete"
	ActionOpen     = "open"
	ActionReopen   = "reopen"
	ActionToggle   = "toggle"
	ActionPublish  = "go"
	postPrefix     = "post"
	platformPrefix = "pf"
)

var ErrBadCallback = errors.New("malformed callback data")

// Callback is decoded inline button data.
type Callback struct {
	Action   string
	PostID   string
	Platform model.Platform
}

// PostCallback encodes "post:<action>:<id>".
func PostCallback(action, postID string) string {
	return postPrefix + ":" + action + ":" + postID
}

// ToggleCallback encodes "pf:toggle:<id>:<platform>".
func ToggleCallback(postID string, p model.Platform) string {
	return platformPrefix + ":" + ActionToggle + ":" + postID + ":" + string(p)
}

// PublishCallback encodes "pf:go:<id>".
func PublishCallback(postID string) string {
	return platformPrefix + ":" + ActionPublish + ":" + postID
}

// ParseCallback decodes data produced by the encoders above.
func ParseCallback(data string) (Callback, error) {
	if data == ActionNewPost || data == ActionMyPosts {
		return Callback{Action: data}, nil
	}
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 3 && parts[0] == postPrefix:
		switch parts[1] {
		case ActionConfirm, ActionRegen, ActionDelete, ActionOpen, ActionReopen:
		default:
			return Callback{}, ErrBadCallback
		}
		if !model.ValidPostID(parts[2]) {
			return Callback{}, ErrBadCallback
		}
		return Callback{Action: parts[1], PostID: parts[2]}, nil

	case len(parts) == 3 && parts[0] == platformPrefix && parts[1] == ActionPublish:
		if !model.ValidPostID(parts[2]) {
			return Callback{}, ErrBadCallback
		}
		return Callback{Action: ActionPublish, PostID: parts[2]}, nil

	case len(parts) == 4 && parts[0] == platformPrefix && parts[1] == ActionToggle:
		p := model.Platform(parts[3])
		if !model.ValidPostID(parts[2]) || !p.Valid() {
			return Callback{}, ErrBadCallback
		}
		return Callback{Action: ActionToggle, PostID: parts[2], Platform: p}, nil
	}
	return Callback{}, ErrBadCallback
}
