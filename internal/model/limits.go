package model

// Column bounds shared by validation and the schema.
const (
	MaxUsernameLength    = 50
	MaxOrderNumberLength = 50
	MaxStatusLength      = 20
	MaxSKULength         = 50
	MaxItemNameLength    = 255

	MoneyScale        = 2
	TotalAmountDigits = 12
	PriceDigits       = 10
)
