// Package referral выдаёт и проверяет реферальные коды вида SPLICKETS-<инициалы><4 символа>.
package referral

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	// Prefix общий префикс всех кодов.
	Prefix = "SPLICKETS-"
	// Alphabet 32 символа без неоднозначных I, O, 0, 1.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// RandomLength количество случайных символов после инициалов.
	RandomLength = 4
	// MaxAttempts сколько раз пробуем вставить код при коллизиях.
	MaxAttempts = 10

	fallbackInitial = 'X'
)

// Initials возвращает две буквы из имени и фамилии. Символы вне алфавита
// (пустое имя, кириллица, I или O) заменяются на X.
func Initials(firstName, lastName string) string {
	return string([]rune{initial(firstName), initial(lastName)})
}

func initial(name string) rune {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackInitial
	}
	r := unicode.ToUpper([]rune(name)[0])
	if !strings.ContainsRune(Alphabet, r) || unicode.IsDigit(r) {
		return fallbackInitial
	}
	return r
}

// Generate строит новый код, читая случайные байты из rnd.
// 256 делится на 32 без остатка, поэтому byte % 32 распределён равномерно.
func Generate(firstName, lastName string, rnd io.Reader) (string, error) {
	const op = "referral.Generate"
	if rnd == nil {
		rnd = rand.Reader
	}

	buf := make([]byte, RandomLength)
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var sb strings.Builder
	sb.Grow(len(Prefix) + 2 + RandomLength)
	sb.WriteString(Prefix)
	sb.WriteString(Initials(firstName, lastName))
	for _, b := range buf {
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

// Valid проверяет формат кода без обращения к хранилищу.
func Valid(code string) bool {
	if !strings.HasPrefix(code, Prefix) {
		return false
	}
	body := code[len(Prefix):]
	if len(body) != 2+RandomLength {
		return false
	}
	for _, r := range body {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Normalize приводит введённый пользователем код к каноническому виду.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
