package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrIncompleteAccount = errors.New("account credentials incomplete")
)

// Account is the platform identity a slug resolves to
type Account struct {
	IGUserID    string `yaml:"ig_user_id"`
	AccessToken string `yaml:"access_token"`
}

// Accounts maps account slugs used in schedule records to credentials
type Accounts map[string]Account

// Resolve looks up the identity and secret token for an account slug
func (a Accounts) Resolve(slug string) (Account, error) {
	account, ok := a[slug]
	if !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownAccount, slug)
	}

	var missing []string
	if strings.TrimSpace(account.IGUserID) == "" {
		missing = append(missing, "ig_user_id")
	}
	if strings.TrimSpace(account.AccessToken) == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return Account{}, fmt.Errorf("%w: %q missing %s", ErrIncompleteAccount, slug, strings.Join(missing, ", "))
	}
	return account, nil
}
