package model

import "github.com/shopspring/decimal"

// UniqueAmount is base + sequence/100, rounded to exactly two decimals.
func UniqueAmount(base decimal.Decimal, sequence int) decimal.Decimal {
	return base.Add(decimal.New(int64(sequence), -2)).Round(2)
}

// ToMinor converts a 2-dp amount to integer sub-units (paise), the storage form.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
