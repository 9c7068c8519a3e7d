package core

import "fmt"

const defaultNoReplyHost = "github.com"

// BotIdentity is how an App appears as a commit author or commenter.
type BotIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Slug  string `json:"slug"`
	AppID int64  `json:"app_id"`
}

// BotIdentityFor derives the bot login and no-reply address GitHub assigns
// to an App: "<slug>[bot]" and "<id>+<slug>[bot]@users.noreply.<host>".
func BotIdentityFor(slug string, appID int64, host string) BotIdentity {
	if host == "" {
		host = defaultNoReplyHost
	}
	name := slug + "[bot]"
	return BotIdentity{
		Name:  name,
		Email: fmt.Sprintf("%d+%s@users.noreply.%s", appID, name, host),
		Slug:  slug,
		AppID: appID,
	}
}
