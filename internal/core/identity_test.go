package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotIdentityFor(t *testing.T) {
	got := BotIdentityFor("my-bot", 123, "")
	assert.Equal(t, BotIdentity{
		Name:  "my-bot[bot]",
		Email: "123+my-bot[bot]@users.noreply.github.com",
		Slug:  "my-bot",
		AppID: 123,
	}, got)

	ghes := BotIdentityFor("deployer", 7, "ghe.example.com")
	assert.Equal(t, "7+deployer[bot]@users.noreply.ghe.example.com", ghes.Email)
}
