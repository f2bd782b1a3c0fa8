// Package sign реализует подпись запросов партнерского Cashdesk API.
//
// Подпись составная: SHA-256 от одного упорядоченного набора полей,
// MD5 от другого, затем SHA-256 от конкатенации hex-строк обоих
// дайджестов. Порядок полей и разделители заданы партнером и должны
// воспроизводиться байт в байт.
package sign

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Confirm вычисляет confirm-параметр запроса: md5("userID:hash")
func Confirm(userID, hash string) string {
	return md5hex(userID + ":" + hash)
}

// Lookup вычисляет подпись запроса поиска пользователя
func Lookup(hash, cashierPass, cashdeskID, userID string) string {
	first := sha256hex(fmt.Sprintf("hash=%s&userid=%s&cashdeskid=%s", hash, userID, cashdeskID))
	second := md5hex(fmt.Sprintf("userid=%s&cashierpass=%s&hash=%s", userID, cashierPass, hash))
	return sha256hex(first + second)
}

// Deposit вычисляет подпись запроса пополнения
func Deposit(hash, cashierPass, cashdeskID, lng, userID, summa string) string {
	first := sha256hex(fmt.Sprintf("hash=%s&lng=%s&userid=%s", hash, lng, userID))
	second := md5hex(fmt.Sprintf("summa=%s&cashierpass=%s&cashdeskid=%s", summa, cashierPass, cashdeskID))
	return sha256hex(first + second)
}

// Payout вычисляет подпись запроса выплаты.
// Отличается от Deposit полем code вместо summa во втором наборе.
func Payout(hash, cashierPass, cashdeskID, lng, userID, code string) string {
	first := sha256hex(fmt.Sprintf("hash=%s&lng=%s&userid=%s", hash, lng, userID))
	second := md5hex(fmt.Sprintf("code=%s&cashierpass=%s&cashdeskid=%s", code, cashierPass, cashdeskID))
	return sha256hex(first + second)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
