// Package pricing содержит чистые функции ценообразования: tier клиента,
// процент скидки, стоимость доставки и оценка срока доставки. Функции не
// имеют побочных эффектов и не обращаются к хранилищу.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier — loyalty-классификация клиента.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Zone — классификация дальности доставки.
type Zone string

const (
	ZoneLocal         Zone = "LOCAL"
	ZoneRegional      Zone = "REGIONAL"
	ZoneNational      Zone = "NATIONAL"
	ZoneInternational Zone = "INTERNATIONAL"
)

// Method — способ доставки.
type Method string

const (
	MethodEconomy   Method = "economy"
	MethodStandard  Method = "standard"
	MethodExpress   Method = "express"
	MethodOvernight Method = "overnight"
)

var (
	baseRates = map[Method]decimal.Decimal{
		MethodEconomy:   decimal.RequireFromString("3.99"),
		MethodStandard:  decimal.RequireFromString("5.99"),
		MethodExpress:   decimal.RequireFromString("12.99"),
		MethodOvernight: decimal.RequireFromString("24.99"),
	}
	weightRates = map[Method]decimal.Decimal{
		MethodEconomy:   decimal.RequireFromString("0.89"),
		MethodStandard:  decimal.RequireFromString("1.25"),
		MethodExpress:   decimal.RequireFromString("2.50"),
		MethodOvernight: decimal.RequireFromString("4.99"),
	}
	zoneMultipliers = map[Zone]decimal.Decimal{
		ZoneLocal:         decimal.RequireFromString("0.8"),
		ZoneRegional:      decimal.RequireFromString("1.0"),
		ZoneNational:      decimal.RequireFromString("1.3"),
		ZoneInternational: decimal.RequireFromString("2.5"),
	}

	shippingFloor = decimal.RequireFromString("1.99")
	shippingCap   = decimal.RequireFromString("99.99")
	discountCap   = decimal.RequireFromString("0.25")
)

var (
	baseDeliveryDays = map[Method]int{
		MethodOvernight: 1,
		MethodExpress:   2,
		MethodStandard:  5,
		MethodEconomy:   7,
	}
	zoneDeliveryDays = map[Zone]int{
		ZoneLocal:         0,
		ZoneRegional:      1,
		ZoneNational:      2,
		ZoneInternational: 5,
	}
)

// CustomerTier вычисляет tier по накопленной сумме покупок и числу заказов.
func CustomerTier(totalSpent float64, orderCount int) Tier {
	switch {
	case totalSpent >= 5000 || (totalSpent >= 2500 && orderCount >= 50):
		return TierPlatinum
	case totalSpent >= 2500 || (totalSpent >= 1000 && orderCount >= 20):
		return TierGold
	case totalSpent >= 500 || (totalSpent >= 250 && orderCount >= 5):
		return TierSilver
	default:
		return TierBronze
	}
}

// DiscountPercent возвращает суммарный процент скидки в диапазоне [0, 0.25]:
// базовая ставка tier + объёмная надбавка + промо-надбавка.
func DiscountPercent(tier Tier, quantity int32, isPromoCategory bool) decimal.Decimal {
	var base decimal.Decimal
	switch tier {
	case TierPlatinum:
		base = decimal.RequireFromString("0.15")
	case TierGold:
		base = decimal.RequireFromString("0.10")
	case TierSilver:
		base = decimal.RequireFromString("0.05")
	default:
		base = decimal.Zero
	}

	switch {
	case quantity >= 10:
		base = base.Add(decimal.RequireFromString("0.05"))
	case quantity >= 5:
		base = base.Add(decimal.RequireFromString("0.02"))
	}

	if isPromoCategory {
		base = base.Add(decimal.RequireFromString("0.03"))
	}

	if base.GreaterThan(discountCap) {
		return discountCap
	}
	return base
}

// ShippingCost считает стоимость доставки по весу, зоне и способу.
// Для всех зон кроме INTERNATIONAL результат ограничен [1.99, 99.99].
func ShippingCost(weightLb float64, zone Zone, method Method) decimal.Decimal {
	base, ok := baseRates[method]
	if !ok {
		base = baseRates[MethodStandard]
	}
	perLb, ok := weightRates[method]
	if !ok {
		perLb = weightRates[MethodStandard]
	}
	mult, ok := zoneMultipliers[zone]
	if !ok {
		mult = zoneMultipliers[ZoneRegional]
	}

	extra := decimal.NewFromFloat(weightLb).Sub(decimal.NewFromInt(1))
	if extra.Sign() < 0 {
		extra = decimal.Zero
	}

	cost := base.Mul(mult).Add(extra.Mul(perLb).Mul(mult))

	if zone == ZoneInternational {
		if cost.LessThan(shippingFloor) {
			return shippingFloor
		}
		return cost
	}
	if cost.LessThan(shippingFloor) {
		return shippingFloor
	}
	if cost.GreaterThan(shippingCap) {
		return shippingCap
	}
	return cost
}

// DeliveryEstimate возвращает ожидаемую дату доставки: от даты заказа
// отсчитываются рабочие дни (без суббот и воскресений).
func DeliveryEstimate(orderDate time.Time, method Method, zone Zone) time.Time {
	days, ok := baseDeliveryDays[method]
	if !ok {
		days = baseDeliveryDays[MethodStandard]
	}
	days += zoneDeliveryDays[zone]

	estimate := orderDate
	for days > 0 {
		estimate = estimate.AddDate(0, 0, 1)
		if wd := estimate.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days--
	}
	return estimate
}
