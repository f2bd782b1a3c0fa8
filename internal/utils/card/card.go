package card

import (
	"strings"
	"unicode"
)

// Validate проверяет номер банковской карты: после удаления пробельных
// символов строка должна состоять ровно из 16 цифр
func Validate(number string) bool {
	number = Normalize(number)

	if len(number) != 16 {
		return false
	}

	for _, ch := range number {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}

// Normalize удаляет пробельные символы из номера карты, включая
// табуляцию и неразрывные пробелы из буфера обмена
func Normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

// Mask возвращает номер карты с маскированной серединой
func Mask(number string) string {
	number = Normalize(number)
	if len(number) != 16 {
		return number
	}
	return number[:4] + " **** **** " + number[12:]
}
