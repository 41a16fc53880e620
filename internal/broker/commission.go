package broker

// CommissionInfo описывает комиссионную схему биржи.
// Комиссии процентные: Rate задается долей от оборота
// (0.001 = 0.1%).
type CommissionInfo struct {
	MakerRate float64
	TakerRate float64
}

// Commission возвращает комиссию за сделку size по цене price.
// Знак size не важен, комиссия всегда неотрицательна.
func (c CommissionInfo) Commission(size, price float64) float64 {
	if size < 0 {
		size = -size
	}
	return size * price * c.TakerRate
}

// MakerCommission - комиссия мейкера для лимитных ордеров
func (c CommissionInfo) MakerCommission(size, price float64) float64 {
	if size < 0 {
		size = -size
	}
	return size * price * c.MakerRate
}
