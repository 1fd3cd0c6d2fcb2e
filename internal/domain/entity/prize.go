package entity

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PrizeDistribution - призовой фонд викторины и его разбивка по местам
type PrizeDistribution struct {
	PaidParticipants int64
	TotalEntryFees   decimal.Decimal
	Commission       decimal.Decimal
	Pool             decimal.Decimal
	First            decimal.Decimal
	Second           decimal.Decimal
	Third            decimal.Decimal
}

// ComputePrizeDistribution считает фонд: взносы оплативших участников за вычетом комиссии,
// затем делит его по процентам splits. Третье место получает остаток, чтобы сумма долей
// совпадала с фондом после округления до копеек.
func ComputePrizeDistribution(entryFee decimal.Decimal, paidCount int64, commissionPercent decimal.Decimal, splits [3]int) PrizeDistribution {
	total := entryFee.Mul(decimal.NewFromInt(paidCount)).Round(2)
	commission := total.Mul(commissionPercent).Div(hundred).Round(2)
	pool := total.Sub(commission)

	first := pool.Mul(decimal.NewFromInt(int64(splits[0]))).Div(hundred).Round(2)
	second := pool.Mul(decimal.NewFromInt(int64(splits[1]))).Div(hundred).Round(2)
	third := decimal.Zero
	if splits[2] > 0 {
		third = pool.Sub(first).Sub(second)
	}

	return PrizeDistribution{
		PaidParticipants: paidCount,
		TotalEntryFees:   total,
		Commission:       commission,
		Pool:             pool,
		First:            first,
		Second:           second,
		Third:            third,
	}
}

// ApplyTo записывает распределение в викторину
func (d PrizeDistribution) ApplyTo(q *Quiz) {
	q.TotalEntryFees = d.TotalEntryFees
	q.Commission = d.Commission
	q.PrizePool = d.Pool
	q.PrizeFirst = d.First
	q.PrizeSecond = d.Second
	q.PrizeThird = d.Third
}

// ValidatePrizeSplits проверяет, что проценты неотрицательны и в сумме дают 100
func ValidatePrizeSplits(splits [3]int) bool {
	sum := 0
	for _, s := range splits {
		if s < 0 {
			return false
		}
		sum += s
	}
	return sum == 100
}
