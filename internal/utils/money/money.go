// Package money содержит денежную арифметику расчетов.
// Все округления вниз (усечение), дробная часть - 2 знака.
package money

import "math"

// Комиссия вывода в UZS: пользователю достается 98% от брутто
const payoutNetPercent = 98

// Ставка реферальной комиссии: 0.001 от суммы пополнения
const referralRate = 1000

// Стоимость одного лотерейного билета в UZS
const TicketPrice = 30000

// Trunc2 усекает значение до 2 знаков после запятой (не округляет).
// Предварительное округление до 6 знаков гасит шум двоичного
// представления, не влияя на само усечение.
func Trunc2(v float64) float64 {
	return math.Trunc(math.Round(v*1e6)/1e4) / 100
}

// Tickets вычисляет число билетов за пополнение: floor(amount / 30000)
func Tickets(amount float64) int64 {
	return int64(math.Floor(amount / TicketPrice))
}

// ReferralCommission вычисляет комиссию реферера: 0.001 x amount,
// усеченную до 2 знаков
func ReferralCommission(amount float64) float64 {
	return Trunc2(amount / referralRate)
}

// NetPayoutUZS вычисляет чистую сумму вывода в UZS: 98% от брутто,
// усеченные до 2 знаков
func NetPayoutUZS(gross float64) float64 {
	return Trunc2(gross * payoutNetPercent / 100)
}

// ConvertRUB переводит сумму RUB в UZS по курсу, усекая до 2 знаков
func ConvertRUB(gross, rate float64) float64 {
	return Trunc2(gross * rate)
}
