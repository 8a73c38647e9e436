package validation

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/noteduco342/chatsync/internal/models"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return models.UserStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("selectable_status", func(fl validator.FieldLevel) bool {
		return models.UserStatus(fl.Field().String()).Selectable()
	})
	_ = v.RegisterValidation("file_type", func(fl validator.FieldLevel) bool {
		return models.FileType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("media_url", func(fl validator.FieldLevel) bool {
		return ValidMediaURL(fl.Field().String())
	})
	return v
}

// Struct validates a request struct against its `validate` tags and flattens
// the result into a single readable error.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	return validate.Var(email, "email") == nil
}

func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func ValidateUsername(username string) bool {
	username = NormalizeUsername(username)
	return usernameRe.MatchString(username)
}

func PasswordMinLength() int {
	minStr := os.Getenv("PASSWORD_MIN_LENGTH")
	if minStr == "" {
		return 10
	}
	min, err := strconv.Atoi(minStr)
	if err != nil || min < 8 {
		return 10
	}
	return min
}

func ValidatePassword(password string) bool {
	return len(password) >= PasswordMinLength()
}

func ValidSelectableStatus(s models.UserStatus) bool {
	return s.Selectable()
}

// ValidMediaURL accepts absolute http(s) URLs and root-relative paths, the two
// shapes the media service hands out depending on PUBLIC_MEDIA_BASE_URL.
func ValidMediaURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return u.Host == "" && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//")
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func ValidIdleTimeout(ms int) bool {
	return ms > 0
}

// TrimAndLimit trims surrounding whitespace and cuts s to at most max runes.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
