package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the engine's secrets in the OS keychain.
const KeyringService = "applybot"

// GetPlatformPassword looks up the login password for one platform account.
// Keyring first, APPLYBOT_<PLATFORM>_PASSWORD env var as the headless
// fallback.
func GetPlatformPassword(platformName, account string) (string, error) {
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount(platformName, account))
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}

	env := "APPLYBOT_" + strings.ToUpper(platformName) + "_PASSWORD"
	if pw := strings.TrimSpace(os.Getenv(env)); pw != "" {
		return pw, nil
	}

	return "", fmt.Errorf("password for %s not found (set it in keychain or via %s)", platformName, env)
}

func SetPlatformPassword(platformName, account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount(platformName, account), password)
}

func DeletePlatformPassword(platformName, account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount(platformName, account))
}

// GetIMAPPassword resolves the confirmation-mail inbox password. Same
// lookup order as platform passwords.
func GetIMAPPassword(username, host string) (string, error) {
	account := fmt.Sprintf("applybot:imap:%s@%s", username, host)
	pw, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	if pw := strings.TrimSpace(os.Getenv("APPLYBOT_IMAP_PASSWORD")); pw != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it in keychain or via APPLYBOT_IMAP_PASSWORD)")
}

func keyringAccount(platformName, account string) string {
	return fmt.Sprintf("applybot:%s:%s", strings.ToLower(platformName), account)
}
